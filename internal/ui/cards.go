package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
)

// cardHeight is the number of lines one card occupies, separator included.
const cardHeight = 3

// RenderTabs renders the section titles, highlighting active. Tabs are
// numbered so 1-9 can jump to them.
func RenderTabs(sections []home.Section, active, width int) string {
	if len(sections) == 0 {
		return ""
	}
	tabs := make([]string, len(sections))
	for i, s := range sections {
		label := fmt.Sprintf("%d %s (%d)", i+1, s.Title, len(s.Listings))
		if i == active {
			tabs[i] = TabActive.Render(label)
		} else {
			tabs[i] = TabInactive.Render(label)
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if lipgloss.Width(row) > width && width > 0 {
		// Too many tabs: show only the active one with its position.
		row = TabActive.Render(fmt.Sprintf("%d/%d %s", active+1, len(sections), sections[active].Title))
	}
	return row
}

// RenderSection renders the cards of one section, scrolled so the cursor
// stays visible within height lines.
func RenderSection(items []listing.Listing, cursor int, favorites map[string]bool, width, height int, now time.Time) string {
	if len(items) == 0 {
		return HelpStyle.Render("No listings in this section yet. Press 'f' to sync or 'r' to reload.")
	}

	visible := max(height/cardHeight, 1)
	offset := scrollOffset(cursor, visible)

	var b strings.Builder
	for i := offset; i < len(items) && i < offset+visible; i++ {
		b.WriteString(renderCard(items[i], i == cursor, favorites[items[i].ID], width, now))
		b.WriteString("\n\n")
	}
	return b.String()
}

// scrollOffset returns the first visible index for cursor.
func scrollOffset(cursor, visible int) int {
	if cursor >= visible {
		return cursor - visible + 1
	}
	return 0
}

// renderCard renders a two-line listing card: title with badges, then
// location, start date, ages, price and categories.
func renderCard(l listing.Listing, selected, favorite bool, width int, now time.Time) string {
	inner := max(width-4, 10)

	title := CardTitle.Render(truncateRunes(l.Title, inner-16))
	if l.Featured {
		title += FeaturedBadge.Render("Featured")
	}
	if favorite {
		title += FavoriteMark.Render("♥")
	}

	var meta []string
	if l.Location != "" {
		meta = append(meta, l.Location)
	}
	if s := formatStart(l.StartAt, now); s != "" {
		meta = append(meta, s)
	}
	if s := formatAges(l.AgeMin, l.AgeMax); s != "" {
		meta = append(meta, s)
	}
	if l.PriceCents > 0 {
		meta = append(meta, formatPrice(l.PriceCents))
	}
	line2 := CardMeta.Render(truncateRunes(strings.Join(meta, " · "), inner))

	var tags []string
	for _, c := range l.Categories {
		tags = append(tags, CategoryTag.Render(c))
	}
	if len(tags) > 0 {
		candidate := line2 + "  " + strings.Join(tags, "")
		if lipgloss.Width(candidate) <= inner {
			line2 = candidate
		}
	}

	card := title + "\n" + line2
	if selected {
		return CardSelected.Render(card)
	}
	return CardNormal.Render(card)
}

// formatStart describes when a listing starts relative to now.
func formatStart(start, now time.Time) string {
	if start.IsZero() {
		return ""
	}
	if start.Before(now) {
		return "started " + start.Format("Jan 2")
	}
	days := int(start.Sub(now).Hours() / 24)
	switch {
	case days == 0:
		return "starts today"
	case days == 1:
		return "starts tomorrow"
	case days < 14:
		return fmt.Sprintf("starts in %dd", days)
	case start.Year() != now.Year():
		return "starts " + start.Format("Jan 2, 2006")
	default:
		return "starts " + start.Format("Jan 2")
	}
}

func formatAges(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("ages %d-%d", lo, hi)
	case lo > 0:
		return fmt.Sprintf("ages %d+", lo)
	case hi > 0:
		return fmt.Sprintf("up to age %d", hi)
	}
	return ""
}

func formatPrice(cents int) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// RenderStatusBar renders the bottom bar: position or spinner on the left,
// key hints on the right.
func RenderStatusBar(cursor, total, width int, loading bool, spin, status string) string {
	var left string
	switch {
	case loading:
		left = " " + spin + " Loading... "
	case status != "":
		left = " " + status + " "
	case total == 0:
		left = " 0/0 "
	default:
		left = fmt.Sprintf(" %d/%d ", cursor+1, total)
	}

	keys := []string{
		StatusBarKey.Render("tab") + StatusBarText.Render(":section"),
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("s") + StatusBarText.Render(":save"),
		StatusBarKey.Render("r") + StatusBarText.Render(":reload"),
		StatusBarKey.Render("f") + StatusBarText.Render(":sync"),
		StatusBarKey.Render("?") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	hints := strings.Join(keys, " ")

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(hints)-2, 0)
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}
