package otel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// Filter selects events. The zero Filter matches everything.
type Filter struct {
	KindPrefix string // e.g. "rank" or "sync.error"
	MinLevel   Level
	Comp       string
	Section    string
}

// Match reports whether e passes every set criterion.
func (f Filter) Match(e Event) bool {
	if f.KindPrefix != "" && !strings.HasPrefix(string(e.Kind), f.KindPrefix) {
		return false
	}
	if f.MinLevel != "" && e.Level.Rank() < f.MinLevel.Rank() {
		return false
	}
	if f.Comp != "" && e.Comp != f.Comp {
		return false
	}
	if f.Section != "" && !strings.EqualFold(e.Section, f.Section) {
		return false
	}
	return true
}

// Record is a decoded event together with the line it came from.
type Record struct {
	Event
	Raw []byte
}

// ReadTail scans a JSONL event log and returns the last n records that
// match f, oldest first. Lines that are not valid events are skipped.
// n <= 0 returns every match.
func ReadTail(r io.Reader, n int, f Filter) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil || ev.Kind == "" {
			continue
		}
		if !f.Match(ev) {
			continue
		}
		out = append(out, Record{Event: ev, Raw: append([]byte(nil), line...)})
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	return out, sc.Err()
}
