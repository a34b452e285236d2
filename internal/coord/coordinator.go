// Package coord runs background syncs from listing sources into the store.
package coord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/logging"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/store"
	"github.com/abelbrown/campfinder/internal/ui"
)

// DefaultInterval is the time between sync cycles when none is configured.
const DefaultInterval = 15 * time.Minute

// syncTimeout bounds one source's pull, pagination included.
const syncTimeout = 2 * time.Minute

// maxConcurrentSyncs limits parallel source pulls.
const maxConcurrentSyncs = 4

// Source is anything that can produce the full current listing set.
// fetch.Client and fetch.FileSource satisfy it.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]listing.Listing, error)
}

// Sender receives sync results. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Result is the outcome of syncing one source.
type Result struct {
	Source   string
	Fetched  int
	Inserted int
	Updated  int
	Err      error
	Dur      time.Duration
}

// Coordinator manages background syncing.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	store    *store.Store
	sources  []Source // IMMUTABLE: set at construction, never modified
	interval time.Duration
	logger   *otel.Logger
	wg       sync.WaitGroup
}

// NewCoordinator creates a Coordinator. A non-positive interval uses
// DefaultInterval. logger may be nil.
func NewCoordinator(s *store.Store, sources []Source, interval time.Duration, logger *otel.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sourcesCopy := make([]Source, len(sources))
	copy(sourcesCopy, sources)

	return &Coordinator{
		store:    s,
		sources:  sourcesCopy,
		interval: interval,
		logger:   logger,
	}
}

// Start begins background syncing. Call with a cancellable context.
// Syncs immediately, then every interval. to may be nil.
func (c *Coordinator) Start(ctx context.Context, to Sender) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.sync(ctx, to)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sync(ctx, to)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// SyncOnce pulls every source in parallel and returns one Result per
// source, in source order.
func (c *Coordinator) SyncOnce(ctx context.Context) []Result {
	return c.sync(ctx, nil)
}

func (c *Coordinator) sync(ctx context.Context, to Sender) []Result {
	results := make([]Result, len(c.sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSyncs)

	for i, src := range c.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = Result{Source: src.Name(), Err: ctx.Err()}
				return nil
			}
			results[i] = c.syncSource(ctx, src)
			if to != nil {
				to.Send(results[i].Msg())
			}
			return nil // never fail the group - errors reported per-source
		})
	}

	_ = g.Wait()
	return results
}

// syncSource pulls one source with a timeout and saves what it returned.
func (c *Coordinator) syncSource(ctx context.Context, src Source) Result {
	name := src.Name()
	res := Result{Source: name}
	start := time.Now()

	c.logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSyncStart, Comp: "coord", Source: name})

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	listings, err := src.FetchAll(syncCtx)
	if err == nil {
		res.Fetched = len(listings)
		var saved store.SaveResult
		saved, err = c.store.SaveListings(listings)
		res.Inserted, res.Updated = saved.Inserted, saved.Updated
	}
	res.Err = err
	res.Dur = time.Since(start)

	if statusErr := c.store.UpdateSyncStatus(name, res.Fetched, err); statusErr != nil {
		logging.Warn("coord: record sync status", "source", name, "err", statusErr)
	}

	if err != nil {
		logging.Error("coord: sync failed", "source", name, "err", err)
		c.logger.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindSyncError, Comp: "coord", Source: name, Dur: res.Dur, Err: err.Error()})
		return res
	}

	logging.Info("coord: sync complete", "source", name, "fetched", res.Fetched, "inserted", res.Inserted, "updated", res.Updated)
	c.logger.Emit(otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindSyncComplete,
		Comp:   "coord",
		Source: name,
		Count:  res.Fetched,
		Dur:    res.Dur,
		Extra:  map[string]any{"inserted": res.Inserted, "updated": res.Updated},
	})
	return res
}

// Msg converts r to the message the browser expects.
func (r Result) Msg() ui.SyncComplete {
	return ui.SyncComplete{Source: r.Source, Inserted: r.Inserted, Updated: r.Updated, Err: r.Err}
}

// Summarize folds results into one message: names joined, counts
// summed, errors joined.
func Summarize(results []Result) ui.SyncComplete {
	var (
		names []string
		errs  []error
		msg   ui.SyncComplete
	)
	for _, r := range results {
		names = append(names, r.Source)
		msg.Inserted += r.Inserted
		msg.Updated += r.Updated
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	msg.Source = strings.Join(names, ", ")
	msg.Err = errors.Join(errs...)
	return msg
}
