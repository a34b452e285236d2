package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/campfinder/internal/otel"
)

// debugPanelChrome is the lines DebugPanel's border and padding consume.
const debugPanelChrome = 4

// debugOverlay renders event counts and the most recent events. Returns ""
// when ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()

	lines := []string{
		DebugHeaderStyle.Render("Activity"),
		fmt.Sprintf("  Syncs:      %d complete, %d errors", stats[otel.KindSyncComplete], stats[otel.KindSyncError]),
		fmt.Sprintf("  Imports:    %d complete, %d errors", stats[otel.KindImportComplete], stats[otel.KindImportError]),
		fmt.Sprintf("  Sections:   %d ranked, %d backfilled, %d home builds",
			stats[otel.KindRankSection], stats[otel.KindRankBackfill], stats[otel.KindHomeBuild]),
		fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()),
		"",
		DebugHeaderStyle.Render("Recent Events"),
	}

	for _, e := range ring.Last(20) {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.Section != "" {
			line += "  [" + truncateRunes(e.Section, 20) + "]"
		}
		if e.Count > 0 {
			line += fmt.Sprintf("  n=%d", e.Count)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := max(height-debugPanelChrome, 1)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := min(76, width-4)
	panelWidth = max(panelWidth, 20)

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration compactly. Negative durations from clock
// skew clamp to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}
