package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("29")  // Pine
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("214") // Campfire orange
	colorFavorite  = lipgloss.Color("204")
)

// TabActive is the selected section tab.
var TabActive = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// TabInactive is every other section tab.
var TabInactive = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// CardSelected frames the listing under the cursor.
var CardSelected = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(colorHighlight).
	PaddingLeft(1)

// CardNormal frames other listings, keeping alignment with CardSelected.
var CardNormal = lipgloss.NewStyle().
	Border(lipgloss.HiddenBorder(), false, false, false, true).
	PaddingLeft(1)

var CardTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

var CardMeta = lipgloss.NewStyle().
	Foreground(colorSecondary)

// FeaturedBadge marks featured listings.
var FeaturedBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("16")).
	Background(colorHighlight).
	Padding(0, 1).
	MarginLeft(1)

var FavoriteMark = lipgloss.NewStyle().
	Foreground(colorFavorite).
	MarginLeft(1)

// CategoryTag renders one category label.
var CategoryTag = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

var SpinnerStyle = lipgloss.NewStyle().
	Foreground(colorHighlight)

// DebugPanel frames the event overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorMuted).
	Padding(1, 2)

var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
