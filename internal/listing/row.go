package listing

import (
	"strings"
	"time"
)

// Row is a listing as the hosted backend (and fixture files) represent it.
type Row struct {
	ID          string   `json:"id" yaml:"id"`
	ProgramID   string   `json:"program_id,omitempty" yaml:"program_id,omitempty"`
	HostID      string   `json:"host_id,omitempty" yaml:"host_id,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	PriceCents  int      `json:"price_cents,omitempty" yaml:"price_cents,omitempty"`
	AgeMin      int      `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax      int      `json:"age_max,omitempty" yaml:"age_max,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Featured    bool     `json:"featured,omitempty" yaml:"featured,omitempty"`
	ImageURL    string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	StartAt     string   `json:"start_at,omitempty" yaml:"start_at,omitempty"`
}

// timestampLayouts are tried in order. Covers RFC3339 from the REST API,
// Postgres text output with and without zone, and bare dates from forms.
// Fractional seconds are accepted by time.Parse without a layout element.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the formats the backend emits. Values without a zone
// are read as UTC. ok is false for empty or unparseable input.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t as RFC3339 in UTC, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Listing converts the wire row to the domain type.
func (r Row) Listing() Listing {
	created, _ := ParseTimestamp(r.CreatedAt)
	start, _ := ParseTimestamp(r.StartAt)

	var categories []string
	if len(r.Categories) > 0 {
		categories = make([]string, len(r.Categories))
		copy(categories, r.Categories)
	}

	return Listing{
		ID:          r.ID,
		ProgramID:   r.ProgramID,
		HostID:      r.HostID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		PriceCents:  r.PriceCents,
		AgeMin:      r.AgeMin,
		AgeMax:      r.AgeMax,
		Categories:  categories,
		Featured:    r.Featured,
		ImageURL:    r.ImageURL,
		CreatedAt:   created,
		StartAt:     start,
	}
}

// Row converts the listing back to its wire shape.
func (l Listing) Row() Row {
	return Row{
		ID:          l.ID,
		ProgramID:   l.ProgramID,
		HostID:      l.HostID,
		Title:       l.Title,
		Description: l.Description,
		Location:    l.Location,
		PriceCents:  l.PriceCents,
		AgeMin:      l.AgeMin,
		AgeMax:      l.AgeMax,
		Categories:  l.Categories,
		Featured:    l.Featured,
		ImageURL:    l.ImageURL,
		CreatedAt:   FormatTimestamp(l.CreatedAt),
		StartAt:     FormatTimestamp(l.StartAt),
	}
}

// FromRows converts a slice of rows.
func FromRows(rows []Row) []Listing {
	result := make([]Listing, len(rows))
	for i, r := range rows {
		result[i] = r.Listing()
	}
	return result
}

// ToRows converts a slice of listings.
func ToRows(listings []Listing) []Row {
	result := make([]Row, len(listings))
	for i, l := range listings {
		result[i] = l.Row()
	}
	return result
}
