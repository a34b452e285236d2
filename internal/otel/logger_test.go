package otel

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", i, err)
		}
		out = append(out, decoded)
	}
	return out
}

func TestEmitWritesValidJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindRankSection, Level: LevelInfo, Comp: "home", Section: "Popular", Mode: "popular", Count: 4, Limit: 12})
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	want := map[string]any{
		"kind":    "rank.section",
		"level":   "info",
		"comp":    "home",
		"section": "Popular",
		"mode":    "popular",
		"count":   float64(4),
		"limit":   float64(12),
	}
	for k, v := range want {
		if lines[0][k] != v {
			t.Errorf("%s = %v, want %v", k, lines[0][k], v)
		}
	}
}

func TestEmitSetsTimeAndSessionID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Close()
	after := time.Now()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if ev.Time.Before(before) || ev.Time.After(after) {
		t.Errorf("time %v not in [%v, %v]", ev.Time, before, after)
	}
	if ev.SessionID != l.SessionID() {
		t.Errorf("session_id = %q, want %q", ev.SessionID, l.SessionID())
	}
	if len(ev.SessionID) != 36 {
		t.Errorf("session_id should be a UUID, got %q", ev.SessionID)
	}
}

func TestDurToMs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindSyncComplete, Dur: 1500 * time.Millisecond})
	l.Close()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.DurMs != 1500 {
		t.Errorf("expected dur_ms=1500, got %v", ev.DurMs)
	}
	if ev.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", ev.Duration())
	}
}

func TestOmitempty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindStartup})
	l.Close()

	line := strings.TrimSpace(buf.String())
	for _, field := range []string{"dur_ms", "count", "limit", "section", "mode", "source", "query", "path", "status", "err", "msg", "extra"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("expected field %q to be omitted, but found in: %s", field, line)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindHTTPRequest, Comp: "http"})
		}()
	}
	wg.Wait()
	l.Close()

	if lines := decodeLines(t, &buf); len(lines) != 100 {
		t.Errorf("expected 100 lines, got %d", len(lines))
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Emit(Event{Kind: KindStartup})
	l.Info(KindStartup, "cli", "hello")
	l.Timed(Event{Kind: KindHomeBuild})()
	l.Close()
	if l.Dropped() != 0 || l.SessionID() != "" {
		t.Error("nil logger should report nothing")
	}
}

func TestCloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindStartup, Msg: "start"})
	l.Emit(Event{Kind: KindShutdown, Msg: "stop"})
	l.Close()
	l.Close()

	if lines := decodeLines(t, &buf); len(lines) != 2 {
		t.Fatalf("expected 2 lines after Close, got %d", len(lines))
	}

	l.Emit(Event{Kind: KindError})
	if l.Dropped() != 1 {
		t.Errorf("emit after close should count as dropped, got %d", l.Dropped())
	}
}

func TestDropCounter(t *testing.T) {
	bw := &blockingWriter{
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	l := NewLogger(bw)

	// The drain goroutine picks this up and blocks inside Write.
	l.Emit(Event{Kind: KindSyncStart})
	<-bw.started

	for i := 0; i < queueSize+10; i++ {
		l.Emit(Event{Kind: KindSyncStart})
	}

	if l.Dropped() == 0 {
		t.Error("expected drops when the queue is full, got 0")
	}

	close(bw.block)
	l.Close()
}

type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

func TestConvenienceHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info(KindStartup, "cli", "starting")
	l.Warn(KindSyncError, "coord", "timeout")
	l.Error(KindStoreError, "http", errors.New("disk full"))
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	tests := []struct {
		level string
		kind  string
		comp  string
	}{
		{"info", "sys.startup", "cli"},
		{"warn", "sync.error", "coord"},
		{"error", "store.error", "http"},
	}
	for i, tt := range tests {
		if lines[i]["level"] != tt.level || lines[i]["kind"] != tt.kind || lines[i]["comp"] != tt.comp {
			t.Errorf("line %d = %v, want %s/%s/%s", i, lines[i], tt.level, tt.kind, tt.comp)
		}
	}
	if lines[2]["err"] != "disk full" {
		t.Errorf("err = %v", lines[2]["err"])
	}
}

func TestTimed(t *testing.T) {
	l := NewNullLogger()
	ring := NewRingBuffer(4)
	l.SetRingBuffer(ring)

	done := l.Timed(Event{Kind: KindHomeBuild, Comp: "home", Count: 3})
	time.Sleep(2 * time.Millisecond)
	done()
	l.Close()

	events := ring.Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event in ring, got %d", len(events))
	}
	if events[0].Dur < 2*time.Millisecond {
		t.Errorf("Dur = %v, want >= 2ms", events[0].Dur)
	}
	if events[0].Count != 3 {
		t.Errorf("Count = %d, want 3", events[0].Count)
	}
}
