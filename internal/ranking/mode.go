// Package ranking orders listings for display and collapses recurring
// sessions of one program into a single representative.
//
// Everything here is pure: no I/O, no clock reads. Callers pass "now"
// explicitly so results are reproducible.
package ranking

import (
	"fmt"
	"strings"
)

// Mode selects a ranking policy.
type Mode string

const (
	// ModeSoonest prefers the next upcoming session of each program.
	ModeSoonest Mode = "soonest"
	// ModeNewest prefers the most recently created listing.
	ModeNewest Mode = "newest"
	// ModeFeatured shows featured listings only, newest first.
	ModeFeatured Mode = "featured"
	// ModeNew shows listings created within the trailing window, newest first.
	ModeNew Mode = "new"
	// ModePopular shows everything, featured first, then newest first.
	ModePopular Mode = "popular"
)

// Modes lists every recognized mode in display order.
var Modes = []Mode{ModePopular, ModeFeatured, ModeNew, ModeSoonest, ModeNewest}

// ParseMode maps user input to a Mode. Empty input is ModePopular.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModePopular, nil
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown ranking mode %q", s)
}

// KeySet records program keys already placed in a result. It is carried
// across TakeUniquePrograms calls so later passes skip earlier programs.
// Not safe for concurrent use; give each section its own set.
type KeySet map[string]struct{}

// NewKeySet returns an empty set.
func NewKeySet() KeySet { return make(KeySet) }

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key.
func (s KeySet) Add(key string) { s[key] = struct{}{} }
