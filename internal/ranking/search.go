package ranking

import (
	"sort"
	"time"

	"github.com/abelbrown/campfinder/internal/filter"
	"github.com/abelbrown/campfinder/internal/listing"
)

// SearchOptions configures a search results page.
type SearchOptions struct {
	Query      string
	Categories []string
	// Sort is ModeSoonest or ModeNewest; anything else behaves as ModeNewest.
	Sort  Mode
	Limit int // zero or negative means no limit
	Now   time.Time
}

// Search filters pool by query and categories, orders it by opts.Sort and
// collapses each program to one listing.
//
// Soonest ordering puts upcoming listings first by start time, then the
// rest newest first. Newest ordering is newest first throughout.
func Search(pool []listing.Listing, opts SearchOptions) []listing.Listing {
	matched := filter.ByCategory(filter.MatchQuery(pool, opts.Query), opts.Categories)

	sortMode := ModeNewest
	if opts.Sort == ModeSoonest {
		sortMode = ModeSoonest
		sortSoonest(matched, opts.Now)
	} else {
		SortByCreatedDesc(matched)
	}

	result := DedupeByProgram(matched, sortMode, opts.Now)
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

func sortSoonest(items []listing.Listing, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		iUp, jUp := items[i].Upcoming(now), items[j].Upcoming(now)
		if iUp != jUp {
			return iUp
		}
		if iUp {
			return items[i].StartAt.Before(items[j].StartAt)
		}
		return createdLater(items[i], items[j])
	})
}
