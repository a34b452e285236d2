package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/otel"
)

func (c *cli) newEventsCmd() *cobra.Command {
	var (
		tail    int
		follow  bool
		kind    string
		level   string
		comp    string
		section string
		rawJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "View the JSONL event log",
		Long: `Shows recent events from ~/.campfinder/campfinder.events.jsonl.

Examples:
  campfinder events --kind rank          # section ranking and backfill
  campfinder events --level warn -f      # follow warnings and errors
  campfinder events --section Featured --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := eventLogPath()
			f, err := os.Open(logPath)
			if err != nil {
				return fmt.Errorf("event log not found at %s (run another command first): %w", logPath, err)
			}
			defer f.Close()

			filter := otel.Filter{
				KindPrefix: kind,
				MinLevel:   otel.Level(level),
				Comp:       comp,
				Section:    section,
			}
			w := cmd.OutOrStdout()

			records, err := otel.ReadTail(f, tail, filter)
			if err != nil {
				return fmt.Errorf("read %s: %w", logPath, err)
			}
			for _, r := range records {
				fmt.Fprintln(w, formatRecord(r, rawJSON))
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reader := bufio.NewReader(f)
			for {
				line, err := reader.ReadBytes('\n')
				if err == io.EOF {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(100 * time.Millisecond):
					}
					continue
				}
				if err != nil {
					return err
				}
				line = []byte(strings.TrimSpace(string(line)))
				var ev otel.Event
				if json.Unmarshal(line, &ev) != nil || ev.Kind == "" {
					continue
				}
				if filter.Match(ev) {
					fmt.Fprintln(w, formatRecord(otel.Record{Event: ev, Raw: line}, rawJSON))
				}
			}
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "Number of recent events to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by event kind prefix (e.g. 'sync' or 'rank.backfill')")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&comp, "comp", "", "Filter by component name")
	cmd.Flags().StringVar(&section, "section", "", "Filter by section title")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Output raw JSON lines")
	return cmd
}

// formatRecord renders one event on a line.
func formatRecord(r otel.Record, rawJSON bool) string {
	if rawJSON {
		return string(r.Raw)
	}
	ev := r.Event

	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s [%-5s] %-16s", ev.Time.Local().Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}

	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.Section != "" {
		parts = append(parts, fmt.Sprintf("section=%q", ev.Section))
	}
	if ev.Mode != "" {
		parts = append(parts, "mode="+ev.Mode)
	}
	if d := ev.Duration(); d > 0 {
		ms := float64(d) / float64(time.Millisecond)
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ms), ms))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", ev.Limit))
	}
	if ev.Source != "" {
		parts = append(parts, "src="+ev.Source)
	}
	if ev.Query != "" {
		parts = append(parts, fmt.Sprintf("q=%q", ev.Query))
	}
	if ev.Path != "" {
		parts = append(parts, "path="+ev.Path)
	}
	if ev.Status > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", ev.Status))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
