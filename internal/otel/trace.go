package otel

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// TraceEnv enables a ui.msg event for every message the browser handles.
// Accepts strconv.ParseBool values plus "on", "off", "yes" and "no".
const TraceEnv = "CAMPFINDER_TRACE"

// tracing is read from the browser's update loop and flipped by tests.
var tracing atomic.Bool

func init() {
	tracing.Store(traceValue(os.Getenv(TraceEnv)))
}

// traceValue interprets a CAMPFINDER_TRACE setting. Unrecognised
// non-empty values count as on.
func traceValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return false
	case "on", "yes":
		return true
	case "off", "no":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}

// TraceEnabled reports whether per-message events are on.
func TraceEnabled() bool {
	return tracing.Load()
}

func setTraceEnabled(v bool) {
	tracing.Store(v)
}
