package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abelbrown/campfinder/internal/config"
	"github.com/abelbrown/campfinder/internal/coord"
	"github.com/abelbrown/campfinder/internal/fetch"
	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/store"
)

// errNoBackend is returned by commands that need the hosted backend.
var errNoBackend = errors.New("backend not configured: set " + config.EnvBackendURL + " or backend.url in config.json")

// dataDir returns ~/.campfinder/, creating it if needed.
func dataDir() (string, error) {
	dir := config.DataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// eventLogPath returns the path to campfinder.events.jsonl.
func eventLogPath() string {
	return filepath.Join(config.DataDir(), "campfinder.events.jsonl")
}

func (c *cli) openStore() (*store.Store, error) {
	st, err := store.Open(c.cfg.ResolvedDBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func (c *cli) newBuilder(st *store.Store) *home.Builder {
	return home.NewBuilder(st, home.SpecsFromConfig(c.cfg), home.Options{
		NewWindow: c.cfg.NewWindow(),
		Logger:    c.events,
		Now:       c.now,
	})
}

func (c *cli) backendClient() *fetch.Client {
	b := c.cfg.Backend
	return fetch.NewClient(fetch.Options{
		BaseURL:           b.URL,
		APIKey:            b.APIKey,
		Table:             b.Table,
		PageSize:          b.PageSize,
		RequestsPerSecond: b.RequestsPerSecond,
	})
}

// backendSources returns the backend as the only sync source, or nil
// when it is not configured.
func (c *cli) backendSources() []coord.Source {
	client := c.backendClient()
	if !client.Available() {
		return nil
	}
	return []coord.Source{client}
}

// printListings writes one line per listing.
func printListings(w io.Writer, items []listing.Listing, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  (no listings)")
		return
	}
	for i, l := range items {
		badge := " "
		if l.Featured {
			badge = "*"
		}
		fmt.Fprintf(w, "%3d. %s %-40s %-12s %s\n",
			i+1, badge, truncate(l.Title, 40), truncate(listing.ProgramKey(l), 12), describeDates(l, now))
	}
}

// describeDates summarises created and start dates relative to now.
func describeDates(l listing.Listing, now time.Time) string {
	var parts []string
	if !l.CreatedAt.IsZero() {
		parts = append(parts, "created "+formatAgo(now.Sub(l.CreatedAt)))
	}
	if !l.StartAt.IsZero() {
		if l.Upcoming(now) {
			parts = append(parts, "starts "+l.StartAt.Format("2006-01-02"))
		} else {
			parts = append(parts, "started "+l.StartAt.Format("2006-01-02"))
		}
	}
	if len(l.Categories) > 0 {
		parts = append(parts, "["+strings.Join(l.Categories, ",")+"]")
	}
	return strings.Join(parts, "  ")
}

func formatAgo(d time.Duration) string {
	switch {
	case d < 0:
		return "in the future"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
