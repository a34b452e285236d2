// Package listing defines the camp/class listing record shared by every layer.
//
// Listing is the domain shape: timestamps are parsed, zero means unknown.
// Row is the wire shape used by the hosted backend and by fixture files:
// timestamps are raw strings. Convert at system boundaries only.
package listing

import (
	"encoding/json"
	"strings"
	"time"
)

// Listing is a single bookable camp or class session.
type Listing struct {
	ID          string
	ProgramID   string // optional; recurring sessions of one program share it
	HostID      string
	Title       string
	Description string
	Location    string
	PriceCents  int
	AgeMin      int
	AgeMax      int
	Categories  []string
	Featured    bool
	ImageURL    string

	// CreatedAt is zero when the backend did not supply a parseable value.
	CreatedAt time.Time
	// StartAt is zero for unscheduled listings.
	StartAt time.Time
}

// ProgramKey returns the grouping key for a listing: the trimmed ProgramID,
// or the listing's own ID when ProgramID is blank.
func ProgramKey(l Listing) string {
	if key := strings.TrimSpace(l.ProgramID); key != "" {
		return key
	}
	return l.ID
}

// Upcoming reports whether the listing has a start time at or after now.
func (l Listing) Upcoming(now time.Time) bool {
	return !l.StartAt.IsZero() && !l.StartAt.Before(now)
}

// HasCategory reports whether the listing carries the tag (case-insensitive).
func (l Listing) HasCategory(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return false
	}
	for _, c := range l.Categories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the listing in its wire shape.
func (l Listing) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Row())
}

// UnmarshalJSON decodes the wire shape. Malformed timestamps become zero
// rather than failing the decode.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var r Row
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*l = r.Listing()
	return nil
}
