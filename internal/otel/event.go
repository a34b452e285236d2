// Package otel records structured campfinder events.
//
// Events are typed structs written as JSONL lines by an asynchronous Logger.
// A RingBuffer keeps the most recent events in memory for the browser's
// debug overlay and for tests.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Rank orders levels by severity. Unknown levels rank as debug.
func (l Level) Rank() int {
	switch l {
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Sync events
	KindSyncStart    EventKind = "sync.start"
	KindSyncComplete EventKind = "sync.complete"
	KindSyncError    EventKind = "sync.error"

	// File import events
	KindImportComplete EventKind = "import.complete"
	KindImportError    EventKind = "import.error"

	// Ranking events
	KindRankSection  EventKind = "rank.section"
	KindRankBackfill EventKind = "rank.backfill"
	KindHomeBuild    EventKind = "home.build"

	KindSearchComplete EventKind = "search.complete"

	KindStoreError EventKind = "store.error"

	KindHTTPRequest EventKind = "http.request"

	// UI events
	KindKeyPress    EventKind = "ui.key"
	KindMsgReceived EventKind = "ui.msg"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is a single observability record. Every field except Kind and
// Time is optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "coord", "home", "http", "ui", "cli"
	SessionID string         `json:"session_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // filled from Dur when marshalled
	Section   string         `json:"section,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Count     int            `json:"count,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Source    string         `json:"source,omitempty"`
	Query     string         `json:"query,omitempty"`
	Path      string         `json:"path,omitempty"`
	Status    int            `json:"status,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// Duration returns Dur, or DurMs when the event was decoded from JSON.
func (e Event) Duration() time.Duration {
	if e.Dur > 0 {
		return e.Dur
	}
	return time.Duration(e.DurMs * float64(time.Millisecond))
}
