package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold *store.Store. Data arrives via messages
// produced by the injected command funcs.
type App struct {
	loadSections   func() tea.Cmd
	toggleFavorite func(listingID string) tea.Cmd
	triggerSync    func() tea.Cmd

	logger *otel.Logger
	ring   *otel.RingBuffer
	now    func() time.Time

	sections  []home.Section
	tab       int
	cursors   []int // per section
	favorites map[string]bool

	spinner   spinner.Model
	status    string
	err       error
	width     int
	height    int
	ready     bool
	loading   bool
	showDebug bool
}

// NewApp creates an App with the given command funcs. Any of them may be nil.
// loadSections: ranks the homepage and answers with SectionsLoaded
// toggleFavorite: flips a favorite and answers with FavoriteToggled
// triggerSync: pulls from the backend and answers with SyncComplete
func NewApp(loadSections func() tea.Cmd, toggleFavorite func(listingID string) tea.Cmd, triggerSync func() tea.Cmd) App {
	return App{
		loadSections:   loadSections,
		toggleFavorite: toggleFavorite,
		triggerSync:    triggerSync,
		now:            time.Now,
		favorites:      make(map[string]bool),
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
		loading:        loadSections != nil, // Init starts the first load
	}
}

// WithObservability attaches an event logger and the ring buffer shown by
// the debug overlay. Either may be nil.
func (a App) WithObservability(logger *otel.Logger, ring *otel.RingBuffer) App {
	a.logger = logger
	a.ring = ring
	return a
}

// WithClock replaces time.Now for rendering start dates.
func (a App) WithClock(now func() time.Time) App {
	a.now = now
	return a
}

// Init loads the sections.
func (a App) Init() tea.Cmd {
	if a.loadSections == nil {
		return nil
	}
	return tea.Batch(a.loadSections(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case SectionsLoaded:
		a.loading = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.err = nil
		a.setSections(msg.Sections)
		if msg.Favorites != nil {
			a.favorites = make(map[string]bool, len(msg.Favorites))
			for _, id := range msg.Favorites {
				a.favorites[id] = true
			}
		}
		return a, nil

	case FavoriteToggled:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		if msg.Favorite {
			a.favorites[msg.ListingID] = true
			a.status = "Saved to favorites"
		} else {
			delete(a.favorites, msg.ListingID)
			a.status = "Removed from favorites"
		}
		return a, nil

	case SyncComplete:
		a.loading = false
		if msg.Err != nil {
			a.err = fmt.Errorf("sync %s: %w", msg.Source, msg.Err)
			return a, nil
		}
		a.status = fmt.Sprintf("Synced %s: %d new, %d updated", msg.Source, msg.Inserted, msg.Updated)
		if msg.Inserted+msg.Updated > 0 {
			return a, a.startLoad()
		}
		return a, nil
	}

	return a, nil
}

// setSections replaces the sections, keeping the active tab and each
// cursor in range.
func (a *App) setSections(sections []home.Section) {
	a.sections = sections
	cursors := make([]int, len(sections))
	for i := range cursors {
		if i < len(a.cursors) {
			cursors[i] = min(a.cursors[i], max(len(sections[i].Listings)-1, 0))
		}
	}
	a.cursors = cursors
	if a.tab >= len(sections) {
		a.tab = max(len(sections)-1, 0)
	}
}

// startLoad begins a reload with the spinner running. Returns nil when
// no loader is wired.
func (a *App) startLoad() tea.Cmd {
	if a.loadSections == nil {
		return nil
	}
	a.loading = true
	return tea.Batch(a.loadSections(), a.spinner.Tick)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	a.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: key})

	a.err = nil
	a.status = ""

	switch key {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "tab", "right", "l":
		if len(a.sections) > 0 {
			a.tab = (a.tab + 1) % len(a.sections)
		}
		return a, nil

	case "shift+tab", "left", "h":
		if len(a.sections) > 0 {
			a.tab = (a.tab - 1 + len(a.sections)) % len(a.sections)
		}
		return a, nil

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n, _ := strconv.Atoi(key)
		if n-1 < len(a.sections) {
			a.tab = n - 1
		}
		return a, nil

	case "j", "down":
		if items := a.currentListings(); a.cursor() < len(items)-1 {
			a.cursors[a.tab]++
		}
		return a, nil

	case "k", "up":
		if a.cursor() > 0 {
			a.cursors[a.tab]--
		}
		return a, nil

	case "g", "home":
		if len(a.cursors) > 0 {
			a.cursors[a.tab] = 0
		}
		return a, nil

	case "G", "end":
		if items := a.currentListings(); len(items) > 0 {
			a.cursors[a.tab] = len(items) - 1
		}
		return a, nil

	case "s":
		if l, ok := a.Selected(); ok && a.toggleFavorite != nil {
			return a, a.toggleFavorite(l.ID)
		}
		return a, nil

	case "r":
		return a, a.startLoad()

	case "f":
		if a.triggerSync != nil {
			a.loading = true
			return a, tea.Batch(a.triggerSync(), a.spinner.Tick)
		}
		return a, nil

	case "?":
		a.showDebug = !a.showDebug
		return a, nil
	}

	return a, nil
}

func (a App) currentListings() []listing.Listing {
	if a.tab < len(a.sections) {
		return a.sections[a.tab].Listings
	}
	return nil
}

func (a App) cursor() int {
	if a.tab < len(a.cursors) {
		return a.cursors[a.tab]
	}
	return 0
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug && a.ring != nil {
		return debugOverlay(a.ring, a.width, a.height-1, a.now()) + "\n" +
			RenderStatusBar(a.cursor(), len(a.currentListings()), a.width, a.loading, a.spinner.View(), "[DEBUG]")
	}

	tabs := RenderTabs(a.sections, a.tab, a.width)

	// Tabs, blank line, status bar, and the error bar when present.
	contentHeight := a.height - 3
	if a.err != nil {
		contentHeight--
	}

	body := RenderSection(a.currentListings(), a.cursor(), a.favorites, a.width, contentHeight, a.now())

	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
	}

	status := RenderStatusBar(a.cursor(), len(a.currentListings()), a.width, a.loading, a.spinner.View(), a.status)

	content := lipgloss.NewStyle().Height(max(contentHeight, 1)).Render(body)
	return tabs + "\n\n" + content + "\n" + errorBar + status
}

// Tab returns the active section index.
func (a App) Tab() int {
	return a.tab
}

// Cursor returns the cursor within the active section.
func (a App) Cursor() int {
	return a.cursor()
}

// Sections returns the loaded sections.
func (a App) Sections() []home.Section {
	return a.sections
}

// Selected returns the listing under the cursor.
func (a App) Selected() (listing.Listing, bool) {
	items := a.currentListings()
	c := a.cursor()
	if c < len(items) {
		return items[c], true
	}
	return listing.Listing{}, false
}

// IsFavorite reports whether id is favorited.
func (a App) IsFavorite(id string) bool {
	return a.favorites[id]
}

// Loading reports whether a load or sync is in flight.
func (a App) Loading() bool {
	return a.loading
}
