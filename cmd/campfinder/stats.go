package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/filter"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
)

// statsEventWindow is how many recent events stats summarises.
const statsEventWindow = 1000

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Store, sync and section statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			total, err := st.CountListings()
			if err != nil {
				return fmt.Errorf("count listings: %w", err)
			}
			pool, err := st.GetListings(0)
			if err != nil {
				return fmt.Errorf("load listings: %w", err)
			}
			now := c.now()

			fmt.Fprintf(w, "Database: %s\n\n", c.cfg.ResolvedDBPath())

			fmt.Fprintln(w, "=== Listings ===")
			fmt.Fprintf(w, "  Total:        %d\n", total)
			fmt.Fprintf(w, "  Programs:     %d\n", countPrograms(pool))
			fmt.Fprintf(w, "  Featured:     %d\n", len(filter.FeaturedOnly(pool)))
			fmt.Fprintf(w, "  Upcoming:     %d\n", len(filter.Upcoming(pool, now)))
			fmt.Fprintf(w, "  New (%dd):    %d\n", int(c.cfg.NewWindow().Hours()/24), len(filter.CreatedWithin(pool, c.cfg.NewWindow(), now)))

			if cats := categoryCounts(pool); len(cats) > 0 {
				fmt.Fprintln(w, "\n=== Categories ===")
				for _, cc := range cats {
					fmt.Fprintf(w, "  %-20s %d\n", cc.name, cc.count)
				}
			}

			statuses, err := st.GetSyncStatus()
			if err != nil {
				return fmt.Errorf("load sync status: %w", err)
			}
			if len(statuses) > 0 {
				fmt.Fprintln(w, "\n=== Sync ===")
				for _, s := range statuses {
					line := fmt.Sprintf("  %-24s %4d items  last %s", s.Name, s.ItemCount, formatAgo(now.Sub(s.LastSync)))
					if s.LastError != "" {
						line += "  error: " + truncate(s.LastError, 60)
					}
					fmt.Fprintln(w, line)
				}
			}

			sections, err := c.newBuilder(st).BuildFromPool(cmd.Context(), pool, now)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "\n=== Homepage ===")
			for _, s := range sections {
				fmt.Fprintf(w, "  %-20s %-9s %3d listings  %3d primary  %3d backfilled\n",
					truncate(s.Title, 20), s.Mode, len(s.Listings), s.Primary, s.Backfilled)
			}

			printEventStats(cmd)
			return nil
		},
	}
}

func countPrograms(pool []listing.Listing) int {
	seen := make(map[string]struct{}, len(pool))
	for _, l := range pool {
		seen[listing.ProgramKey(l)] = struct{}{}
	}
	return len(seen)
}

type categoryCount struct {
	name  string
	count int
}

// categoryCounts returns listing counts per lower-cased category, most
// common first.
func categoryCounts(pool []listing.Listing) []categoryCount {
	counts := make(map[string]int)
	for _, l := range pool {
		for _, c := range l.Categories {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				counts[c]++
			}
		}
	}
	out := make([]categoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, categoryCount{name, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// printEventStats summarises recent events by kind. A missing log is
// not an error.
func printEventStats(cmd *cobra.Command) {
	f, err := os.Open(eventLogPath())
	if err != nil {
		return
	}
	defer f.Close()

	records, err := otel.ReadTail(f, statsEventWindow, otel.Filter{})
	if err != nil || len(records) == 0 {
		return
	}

	counts := make(map[otel.EventKind]int)
	for _, r := range records {
		counts[r.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n=== Events (last %d) ===\n", len(records))
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[otel.EventKind(k)])
	}
}
