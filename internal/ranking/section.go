package ranking

import (
	"sort"
	"time"

	"github.com/abelbrown/campfinder/internal/filter"
	"github.com/abelbrown/campfinder/internal/listing"
)

// DefaultNewWindow is how far back a listing still counts as "new".
const DefaultNewWindow = 45 * 24 * time.Hour

// Policy builds the primary pool for a section: which listings qualify
// and in what priority order.
type Policy interface {
	Name() Mode
	Pool(pool []listing.Listing, now time.Time) []listing.Listing
}

// FeaturedPolicy keeps featured listings, newest first.
type FeaturedPolicy struct{}

func (FeaturedPolicy) Name() Mode { return ModeFeatured }

func (FeaturedPolicy) Pool(pool []listing.Listing, now time.Time) []listing.Listing {
	result := filter.FeaturedOnly(pool)
	SortByCreatedDesc(result)
	return result
}

// RecentPolicy keeps listings created within Window of now, newest first.
type RecentPolicy struct {
	// Window defaults to DefaultNewWindow when zero.
	Window time.Duration
}

func NewRecentPolicy(window time.Duration) *RecentPolicy {
	if window <= 0 {
		window = DefaultNewWindow
	}
	return &RecentPolicy{Window: window}
}

func (p *RecentPolicy) Name() Mode { return ModeNew }

func (p *RecentPolicy) Pool(pool []listing.Listing, now time.Time) []listing.Listing {
	window := p.Window
	if window <= 0 {
		window = DefaultNewWindow
	}
	result := filter.CreatedWithin(pool, window, now)
	SortByCreatedDesc(result)
	return result
}

// PopularPolicy keeps everything: featured first, then newest first.
type PopularPolicy struct{}

func (PopularPolicy) Name() Mode { return ModePopular }

func (PopularPolicy) Pool(pool []listing.Listing, now time.Time) []listing.Listing {
	result := make([]listing.Listing, len(pool))
	copy(result, pool)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Featured != result[j].Featured {
			return result[i].Featured
		}
		return createdLater(result[i], result[j])
	})
	return result
}

// SoonestPolicy keeps upcoming listings, earliest start first.
type SoonestPolicy struct{}

func (SoonestPolicy) Name() Mode { return ModeSoonest }

func (SoonestPolicy) Pool(pool []listing.Listing, now time.Time) []listing.Listing {
	result := filter.Upcoming(pool, now)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result
}

// NewestPolicy keeps everything, newest first.
type NewestPolicy struct{}

func (NewestPolicy) Name() Mode { return ModeNewest }

func (NewestPolicy) Pool(pool []listing.Listing, now time.Time) []listing.Listing {
	result := make([]listing.Listing, len(pool))
	copy(result, pool)
	SortByCreatedDesc(result)
	return result
}

// PolicyFor returns the policy for mode. Unknown modes get PopularPolicy.
func PolicyFor(mode Mode, newWindow time.Duration) Policy {
	switch mode {
	case ModeFeatured:
		return FeaturedPolicy{}
	case ModeNew:
		return NewRecentPolicy(newWindow)
	case ModeSoonest:
		return SoonestPolicy{}
	case ModeNewest:
		return NewestPolicy{}
	default:
		return PopularPolicy{}
	}
}

// SortByCreatedDesc orders listings newest first in place. Listings with
// no creation time sort last; ties keep their input order.
func SortByCreatedDesc(items []listing.Listing) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdLater(items[i], items[j])
	})
}

// Options configures one section.
type Options struct {
	Mode       Mode
	Limit      int
	Categories []string // empty means every category
	Now        time.Time
	NewWindow  time.Duration // ModeNew only; zero means DefaultNewWindow
}

// Result is a ranked section.
type Result struct {
	Listings []listing.Listing
	// Primary counts listings chosen by the mode policy; Backfilled counts
	// those added afterwards from the whole pool.
	Primary    int
	Backfilled int
}

// Rank builds one section. The mode policy supplies the primary pool; if it
// yields fewer than Limit distinct programs, the rest is filled from the
// whole category-filtered pool, newest first. No program appears twice and
// the result never exceeds Limit.
func Rank(pool []listing.Listing, opts Options) Result {
	limit := opts.Limit
	if limit <= 0 {
		return Result{Listings: []listing.Listing{}}
	}

	candidates := filter.ByCategory(pool, opts.Categories)
	policy := PolicyFor(opts.Mode, opts.NewWindow)

	used := NewKeySet()
	chosen := TakeUniquePrograms(policy.Pool(candidates, opts.Now), used, limit)
	primary := len(chosen)

	if len(chosen) < limit {
		fill := make([]listing.Listing, len(candidates))
		copy(fill, candidates)
		SortByCreatedDesc(fill)
		chosen = append(chosen, TakeUniquePrograms(fill, used, limit-len(chosen))...)
	}

	return Result{
		Listings:   chosen,
		Primary:    primary,
		Backfilled: len(chosen) - primary,
	}
}
