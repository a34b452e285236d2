// Package ui provides the Bubble Tea browser for campfinder.
package ui

import "github.com/abelbrown/campfinder/internal/home"

// SectionsLoaded is sent when the homepage sections have been ranked.
type SectionsLoaded struct {
	Sections  []home.Section
	Favorites []string // listing IDs the current user has favorited
	Err       error
}

// FavoriteToggled is sent after a favorite was flipped in the store.
type FavoriteToggled struct {
	ListingID string
	Favorite  bool
	Err       error
}

// SyncComplete is sent when a background pull from a source finishes.
type SyncComplete struct {
	Source   string
	Inserted int
	Updated  int
	Err      error
}
