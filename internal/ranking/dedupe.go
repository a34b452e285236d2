package ranking

import (
	"time"

	"github.com/abelbrown/campfinder/internal/listing"
)

// DedupeByProgram keeps one representative listing per program key.
//
// With ModeNewest (and any mode other than ModeSoonest) a later listing
// replaces the representative only if it was created strictly later. With
// ModeSoonest an upcoming listing beats a non-upcoming one, two upcoming
// listings compare by start time (earlier wins), and two non-upcoming
// listings fall back to the newest rule.
//
// Output follows the order in which each key first appeared in pool.
func DedupeByProgram(pool []listing.Listing, mode Mode, now time.Time) []listing.Listing {
	order := make([]string, 0, len(pool))
	reps := make(map[string]listing.Listing, len(pool))

	for _, candidate := range pool {
		key := listing.ProgramKey(candidate)
		current, seen := reps[key]
		if !seen {
			order = append(order, key)
			reps[key] = candidate
			continue
		}
		if replaces(candidate, current, mode, now) {
			reps[key] = candidate
		}
	}

	result := make([]listing.Listing, 0, len(order))
	for _, key := range order {
		result = append(result, reps[key])
	}
	return result
}

// replaces reports whether candidate should displace current.
func replaces(candidate, current listing.Listing, mode Mode, now time.Time) bool {
	if mode != ModeSoonest {
		return createdLater(candidate, current)
	}

	candUp := candidate.Upcoming(now)
	curUp := current.Upcoming(now)
	switch {
	case candUp && !curUp:
		return true
	case curUp && !candUp:
		return false
	case candUp && curUp:
		return candidate.StartAt.Before(current.StartAt)
	default:
		// Neither is upcoming: reuse the newest comparison.
		return createdLater(candidate, current)
	}
}

// createdLater compares creation times with a missing value as -inf.
func createdLater(a, b listing.Listing) bool {
	if a.CreatedAt.IsZero() {
		return false
	}
	if b.CreatedAt.IsZero() {
		return true
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// TakeUniquePrograms walks pool in order and collects up to limit listings
// whose program key is not yet in used. Every accepted key is added to used,
// so a later call sharing the set never repeats a program.
//
// A nil set is treated as empty; the caller then cannot observe the keys.
func TakeUniquePrograms(pool []listing.Listing, used KeySet, limit int) []listing.Listing {
	if limit <= 0 {
		return []listing.Listing{}
	}
	if used == nil {
		used = NewKeySet()
	}

	result := make([]listing.Listing, 0, min(limit, len(pool)))
	for _, item := range pool {
		if len(result) >= limit {
			break
		}
		key := listing.ProgramKey(item)
		if used.Has(key) {
			continue
		}
		used.Add(key)
		result = append(result, item)
	}
	return result
}
