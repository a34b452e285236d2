package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/ranking"
)

func (c *cli) newSectionCmd() *cobra.Command {
	var (
		limit      int
		categories []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "section MODE",
		Short: "Rank one section (featured, new, popular, soonest, newest)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ranking.ParseMode(args[0])
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = c.cfg.Ranking.DefaultLimit
			}

			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			b := c.newBuilder(st)
			section, err := b.Section(cmd.Context(), home.SectionSpec{
				Title:      string(mode),
				Mode:       mode,
				Limit:      limit,
				Categories: categories,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), section)
			}
			printSection(cmd, section, b.Now())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum listings (default from config)")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Only these categories (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func (c *cli) newHomeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "home",
		Short: "Rank every configured homepage section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			b := c.newBuilder(st)
			sections, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sections)
			}
			for i, s := range sections {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printSection(cmd, s, b.Now())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printSection(cmd *cobra.Command, s home.Section, now time.Time) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s [%s] %d listings", s.Title, s.Mode, len(s.Listings))
	if s.Backfilled > 0 {
		fmt.Fprintf(w, " (%d backfilled)", s.Backfilled)
	}
	fmt.Fprintln(w)
	printListings(w, s.Listings, now)
}

func (c *cli) newSearchCmd() *cobra.Command {
	var (
		sort       string
		limit      int
		categories []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search [QUERY...]",
		Short: "Search listings by title, description, location and category",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ranking.ParseMode(sort)
			if err != nil {
				return err
			}
			if mode != ranking.ModeSoonest && mode != ranking.ModeNewest {
				return fmt.Errorf("--sort must be soonest or newest, got %q", sort)
			}

			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			pool, err := st.GetListings(0)
			if err != nil {
				return fmt.Errorf("load listings: %w", err)
			}

			query := strings.Join(args, " ")
			now := c.now()
			start := time.Now()
			results := ranking.Search(pool, ranking.SearchOptions{
				Query:      query,
				Categories: categories,
				Sort:       mode,
				Limit:      limit,
				Now:        now,
			})
			c.events.Emit(otel.Event{
				Level: otel.LevelInfo,
				Kind:  otel.KindSearchComplete,
				Comp:  "cli",
				Query: query,
				Mode:  string(mode),
				Count: len(results),
				Limit: limit,
				Dur:   time.Since(start),
			})

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d results for %q (%s)\n", len(results), query, mode)
			printListings(cmd.OutOrStdout(), results, now)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sort, "sort", "s", string(ranking.ModeNewest), "Order: soonest or newest")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results (0 for all)")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Only these categories (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
