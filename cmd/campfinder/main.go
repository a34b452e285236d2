// Command campfinder syncs, ranks and serves camp and class listings.
//
// Usage:
//
//	campfinder sync                 Pull listings from the hosted backend
//	campfinder import FILE          Load listings from a YAML or JSON file
//	campfinder section MODE         Rank one section
//	campfinder home                 Rank every configured homepage section
//	campfinder search QUERY         Search listings
//	campfinder serve                HTTP API plus background sync
//	campfinder browse               Terminal browser plus background sync
//	campfinder delete ID...         Remove listings and their favorites
//	campfinder stats                Store and section statistics
//	campfinder events               JSONL event log viewer
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/config"
	"github.com/abelbrown/campfinder/internal/logging"
	"github.com/abelbrown/campfinder/internal/otel"
)

// cli is the state shared by every subcommand.
type cli struct {
	dbPath  string
	verbose bool

	cfg        *config.Config
	events     *otel.Logger
	eventsFile *os.File
	now        func() time.Time
}

func newRootCmd(now func() time.Time) *cobra.Command {
	c := &cli{now: now}

	root := &cobra.Command{
		Use:   "campfinder",
		Short: "Rank and browse camp and class listings",
		Long: `campfinder keeps a local copy of a camps/classes marketplace and ranks it
into homepage sections: featured, new and popular, one listing per program,
backfilled with the newest listings when a section runs short.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (default ~/.campfinder/campfinder.db)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Debug logging to stderr")

	root.AddCommand(
		c.newSyncCmd(),
		c.newImportCmd(),
		c.newSectionCmd(),
		c.newHomeCmd(),
		c.newSearchCmd(),
		c.newServeCmd(),
		c.newBrowseCmd(),
		c.newDeleteCmd(),
		c.newStatsCmd(),
		c.newEventsCmd(),
	)

	// PersistentPostRun is skipped when RunE fails; the logs must still
	// be flushed and closed.
	for _, sub := range root.Commands() {
		if run := sub.RunE; run != nil {
			sub.RunE = func(cmd *cobra.Command, args []string) error {
				defer c.teardown()
				return run(cmd, args)
			}
		}
	}
	return root
}

// setup loads configuration and opens both logs.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", config.Path(), err)
	}
	c.cfg = cfg

	dir, err := dataDir()
	if err != nil {
		return err
	}

	if c.verbose {
		logging.InitWriter(cmd.ErrOrStderr(), log.DebugLevel)
	} else if err := logging.Init(dir, false); err != nil {
		return err
	}

	// The viewer reads the event log; it does not write to it.
	if cmd.Name() == "events" {
		return nil
	}

	f, err := os.OpenFile(eventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.Close()
		return fmt.Errorf("open event log: %w", err)
	}
	c.eventsFile = f
	c.events = otel.NewLogger(f)
	c.events.Info(otel.KindStartup, "cli", cmd.CommandPath())
	return nil
}

func (c *cli) teardown() {
	if c.events != nil {
		c.events.Info(otel.KindShutdown, "cli", "")
		c.events.Close()
		c.events = nil
	}
	if c.eventsFile != nil {
		c.eventsFile.Close()
		c.eventsFile = nil
	}
	logging.Close()
}

func main() {
	if err := newRootCmd(time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}
