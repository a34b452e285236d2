package otel

import (
	"maps"
	"sync"
)

// DefaultRingSize is the ring capacity used when a non-positive size is given.
const DefaultRingSize = 1024

// RingBuffer keeps the most recent events in memory, oldest evicted first.
// Safe for concurrent use.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []Event
	next int  // slot the next Push writes
	full bool // every slot holds an event
}

// NewRingBuffer creates a ring buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{buf: make([]Event, size)}
}

// Push stores e, overwriting the oldest event when full. Extra is copied
// so later writes by the caller do not show through.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		e.Extra = maps.Clone(e.Extra)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// ordered returns the buffered events oldest first. Caller holds r.mu.
func (r *RingBuffer) ordered() []Event {
	if !r.full {
		out := make([]Event, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Snapshot returns a copy of every buffered event, oldest first, or nil
// when empty.
func (r *RingBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.len() == 0 {
		return nil
	}
	return r.ordered()
}

// Last returns up to n of the most recent events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	return r.Matching(Filter{}, n)
}

// Matching returns up to n of the most recent events accepted by f,
// oldest first. n <= 0 returns nil.
func (r *RingBuffer) Matching(f Filter, n int) []Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	all := r.ordered()
	r.mu.Unlock()

	var picked []Event
	for i := len(all) - 1; i >= 0 && len(picked) < n; i-- {
		if f.Match(all[i]) {
			picked = append(picked, all[i])
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len()
}

func (r *RingBuffer) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

// Stats counts buffered events by kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EventKind]int)
	for i := 0; i < r.len(); i++ {
		counts[r.buf[i].Kind]++
	}
	return counts
}
