// Package filter provides pure filter functions for listings.
// All functions are simple: []Listing in, []Listing out. No side effects.
// Results are never nil and preserve input order.
package filter

import (
	"strings"
	"time"

	"github.com/abelbrown/campfinder/internal/listing"
)

// ByCategory keeps listings tagged with any of the given categories.
// An empty category list means "no filter" and returns every listing.
func ByCategory(items []listing.Listing, categories []string) []listing.Listing {
	wanted := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			wanted = append(wanted, c)
		}
	}
	if len(wanted) == 0 {
		return clone(items)
	}

	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		for _, c := range wanted {
			if item.HasCategory(c) {
				result = append(result, item)
				break
			}
		}
	}
	return result
}

// FeaturedOnly keeps listings flagged as featured.
func FeaturedOnly(items []listing.Listing) []listing.Listing {
	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		if item.Featured {
			result = append(result, item)
		}
	}
	return result
}

// CreatedWithin keeps listings created no earlier than now-window.
// Listings with an unknown creation time are dropped.
func CreatedWithin(items []listing.Listing, window time.Duration, now time.Time) []listing.Listing {
	cutoff := now.Add(-window)
	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			continue
		}
		if !item.CreatedAt.Before(cutoff) {
			result = append(result, item)
		}
	}
	return result
}

// Upcoming keeps listings that start at or after now.
func Upcoming(items []listing.Listing, now time.Time) []listing.Listing {
	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		if item.Upcoming(now) {
			result = append(result, item)
		}
	}
	return result
}

// ByHost keeps listings owned by hostID.
func ByHost(items []listing.Listing, hostID string) []listing.Listing {
	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		if item.HostID == hostID {
			result = append(result, item)
		}
	}
	return result
}

// MatchQuery keeps listings whose title, description, location or categories
// contain every whitespace-separated term of query (case-insensitive).
// A blank query matches everything.
func MatchQuery(items []listing.Listing, query string) []listing.Listing {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return clone(items)
	}

	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		haystack := searchText(item)
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, item)
		}
	}
	return result
}

// DedupByID removes rows repeating an earlier ID. First occurrence wins.
// Paginated backend reads can overlap when rows are inserted mid-scan.
func DedupByID(items []listing.Listing) []listing.Listing {
	seen := make(map[string]bool, len(items))
	result := make([]listing.Listing, 0, len(items))
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		result = append(result, item)
	}
	return result
}

func searchText(item listing.Listing) string {
	var b strings.Builder
	b.WriteString(item.Title)
	b.WriteByte(' ')
	b.WriteString(item.Description)
	b.WriteByte(' ')
	b.WriteString(item.Location)
	for _, c := range item.Categories {
		b.WriteByte(' ')
		b.WriteString(c)
	}
	return strings.ToLower(b.String())
}

func clone(items []listing.Listing) []listing.Listing {
	result := make([]listing.Listing, len(items))
	copy(result, items)
	return result
}
