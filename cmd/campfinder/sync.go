package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/coord"
	"github.com/abelbrown/campfinder/internal/fetch"
	"github.com/abelbrown/campfinder/internal/logging"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/store"
)

// watchDebounce is how long a watched file must be quiet before reimport.
const watchDebounce = 500 * time.Millisecond

func (c *cli) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull listings from the hosted backend once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := c.backendSources()
			if len(sources) == 0 {
				return errNoBackend
			}

			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results := coord.NewCoordinator(st, sources, 0, c.events).SyncOnce(ctx)
			return printResults(cmd.OutOrStdout(), results)
		},
	}
}

func printResults(w io.Writer, results []coord.Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-24s error: %v\n", r.Source, r.Err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
			continue
		}
		fmt.Fprintf(w, "%-24s %d fetched, %d new, %d updated (%s)\n",
			r.Source, r.Fetched, r.Inserted, r.Updated, r.Dur.Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

func (c *cli) newImportCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load listings from a YAML or JSON file",
		Long: `Loads listings from FILE into the local store. The file holds either a list
of listing rows or a mapping with a "listings" key. Rows without an id get a
fresh UUID. With --watch, the file is reimported whenever it changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			src := fetch.FileSource{Path: args[0]}
			out := cmd.OutOrStdout()

			if err := c.importOnce(cmd.Context(), st, src, out); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "watching %s (ctrl+c to stop)\n", args[0])
			return fetch.WatchFile(ctx, args[0], watchDebounce, func() {
				if err := c.importOnce(ctx, st, src, out); err != nil {
					logging.Warn("import: reload failed", "path", args[0], "err", err)
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reimport whenever the file changes")
	return cmd
}

func (c *cli) importOnce(ctx context.Context, st *store.Store, src fetch.FileSource, out io.Writer) error {
	results := coord.NewCoordinator(st, []coord.Source{src}, 0, nil).SyncOnce(ctx)
	r := results[0]

	if r.Err != nil {
		c.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindImportError, Comp: "cli", Path: src.Path, Err: r.Err.Error()})
		return fmt.Errorf("import %s: %w", src.Path, r.Err)
	}

	c.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindImportComplete,
		Comp:  "cli",
		Path:  src.Path,
		Count: r.Fetched,
		Dur:   r.Dur,
		Extra: map[string]any{"inserted": r.Inserted, "updated": r.Updated},
	})
	fmt.Fprintf(out, "imported %d listings from %s (%d new, %d updated)\n", r.Fetched, src.Path, r.Inserted, r.Updated)
	return nil
}
