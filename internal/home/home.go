// Package home assembles the homepage: a fixed list of ranked sections
// computed concurrently over one listing pool.
package home

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/campfinder/internal/config"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/ranking"
)

// maxConcurrentSections bounds the ranking goroutines per build.
const maxConcurrentSections = 4

// Source supplies the listing pool. *store.Store satisfies it.
type Source interface {
	GetListings(limit int) ([]listing.Listing, error)
}

// SectionSpec describes one homepage row.
type SectionSpec struct {
	Title      string       `json:"title"`
	Mode       ranking.Mode `json:"mode"`
	Limit      int          `json:"limit"`
	Categories []string     `json:"categories,omitempty"`
}

// Section is a ranked homepage row.
type Section struct {
	Title      string            `json:"title"`
	Mode       ranking.Mode      `json:"mode"`
	Listings   []listing.Listing `json:"listings"`
	Primary    int               `json:"primary"`
	Backfilled int               `json:"backfilled"`
}

// SpecsFromConfig converts configured sections, filling default limits.
// Call cfg.Validate first; unknown modes become popular here.
func SpecsFromConfig(cfg *config.Config) []SectionSpec {
	specs := make([]SectionSpec, 0, len(cfg.Home.Sections))
	for _, s := range cfg.Home.Sections {
		mode, err := ranking.ParseMode(s.Mode)
		if err != nil {
			mode = ranking.ModePopular
		}
		specs = append(specs, SectionSpec{
			Title:      s.Title,
			Mode:       mode,
			Limit:      cfg.SectionLimit(s),
			Categories: s.Categories,
		})
	}
	return specs
}

// Builder ranks sections from a Source.
type Builder struct {
	src       Source
	specs     []SectionSpec
	newWindow time.Duration
	logger    *otel.Logger
	now       func() time.Time
}

// Options configures a Builder. Zero values are fine.
type Options struct {
	NewWindow time.Duration
	Logger    *otel.Logger     // nil disables events
	Now       func() time.Time // nil means time.Now
}

// NewBuilder creates a Builder for specs over src.
func NewBuilder(src Source, specs []SectionSpec, opts Options) *Builder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	specsCopy := make([]SectionSpec, len(specs))
	copy(specsCopy, specs)
	return &Builder{
		src:       src,
		specs:     specsCopy,
		newWindow: opts.NewWindow,
		logger:    opts.Logger,
		now:       now,
	}
}

// Specs returns the configured sections.
func (b *Builder) Specs() []SectionSpec {
	out := make([]SectionSpec, len(b.specs))
	copy(out, b.specs)
	return out
}

// Build loads the pool and ranks every configured section. Sections are
// returned in configuration order.
func (b *Builder) Build(ctx context.Context) ([]Section, error) {
	pool, err := b.pool()
	if err != nil {
		return nil, err
	}
	return b.BuildFromPool(ctx, pool, b.now())
}

// BuildFromPool ranks every configured section against pool at now.
// Each section gets its own used-program set, so a program may show up
// in several sections but never twice in one.
func (b *Builder) BuildFromPool(ctx context.Context, pool []listing.Listing, now time.Time) ([]Section, error) {
	defer b.logger.Timed(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindHomeBuild,
		Comp:  "home",
		Count: len(b.specs),
	})()

	sections := make([]Section, len(b.specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSections)

	for i, spec := range b.specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sections[i] = b.rank(pool, spec, now)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build home: %w", err)
	}
	return sections, nil
}

// Section loads the pool and ranks a single ad-hoc section.
func (b *Builder) Section(ctx context.Context, spec SectionSpec) (Section, error) {
	if err := ctx.Err(); err != nil {
		return Section{}, err
	}
	pool, err := b.pool()
	if err != nil {
		return Section{}, err
	}
	return b.rank(pool, spec, b.now()), nil
}

// Now returns the builder's clock reading.
func (b *Builder) Now() time.Time {
	return b.now()
}

func (b *Builder) pool() ([]listing.Listing, error) {
	pool, err := b.src.GetListings(0)
	if err != nil {
		b.logger.Error(otel.KindStoreError, "home", err)
		return nil, fmt.Errorf("load listings: %w", err)
	}
	return pool, nil
}

func (b *Builder) rank(pool []listing.Listing, spec SectionSpec, now time.Time) Section {
	start := time.Now()
	res := ranking.Rank(pool, ranking.Options{
		Mode:       spec.Mode,
		Limit:      spec.Limit,
		Categories: spec.Categories,
		Now:        now,
		NewWindow:  b.newWindow,
	})

	b.logger.Emit(otel.Event{
		Level:   otel.LevelDebug,
		Kind:    otel.KindRankSection,
		Comp:    "home",
		Section: spec.Title,
		Mode:    string(spec.Mode),
		Count:   len(res.Listings),
		Limit:   spec.Limit,
		Dur:     time.Since(start),
	})
	if res.Backfilled > 0 {
		b.logger.Emit(otel.Event{
			Level:   otel.LevelDebug,
			Kind:    otel.KindRankBackfill,
			Comp:    "home",
			Section: spec.Title,
			Mode:    string(spec.Mode),
			Count:   res.Backfilled,
			Limit:   spec.Limit,
		})
	}

	return Section{
		Title:      spec.Title,
		Mode:       spec.Mode,
		Listings:   res.Listings,
		Primary:    res.Primary,
		Backfilled: res.Backfilled,
	}
}
