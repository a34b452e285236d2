package otel

import "testing"

func TestTraceEnabledToggle(t *testing.T) {
	orig := TraceEnabled()
	defer setTraceEnabled(orig)

	setTraceEnabled(true)
	if !TraceEnabled() {
		t.Error("TraceEnabled() should be true after setTraceEnabled(true)")
	}

	setTraceEnabled(false)
	if TraceEnabled() {
		t.Error("TraceEnabled() should be false after setTraceEnabled(false)")
	}
}

func TestTraceValue(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"  ", false},
		{"1", true},
		{"true", true},
		{"ON", true},
		{"yes", true},
		{"0", false},
		{"false", false},
		{"Off", false},
		{"no", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		if got := traceValue(tt.in); got != tt.want {
			t.Errorf("traceValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
