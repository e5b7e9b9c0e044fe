// Package probecache fills in source durations that the manifest does not
// know yet. Each source is probed at most once per job; results are cached in
// the manifest and never recomputed.
package probecache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"autoedit/ffprobe"
	"autoedit/internal/logging"
	"autoedit/manifest"
	"autoedit/models"
)

var (
	// ErrProbe wraps the diagnostic recorded on a failed source.
	ErrProbe = errors.New("probe failed")
	// ErrNoProbedSources is returned when no source has a usable duration.
	ErrNoProbedSources = errors.New("no probed sources")
)

// Prober measures one source file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Info, error)
}

// Options tune a Cache.
type Options struct {
	// Workers bounds concurrent probes. Values below 1 mean 1.
	Workers int
	// RetryFailed re-probes sources recorded as failed.
	RetryFailed bool
}

// Result summarizes one Fill.
type Result struct {
	Probed int // newly probed in this call
	Failed int // newly failed in this call
	Cached int // already probed before this call
}

// Cache drives a Prober over the manifest's unprobed sources.
type Cache struct {
	prober Prober
	store  *manifest.Store
	opts   Options
	logger zerolog.Logger
}

// New creates a Cache.
func New(prober Prober, store *manifest.Store, opts Options, logger zerolog.Logger) *Cache {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Cache{
		prober: prober,
		store:  store,
		opts:   opts,
		logger: logging.WithComponent(logger, "probe"),
	}
}

type outcome struct {
	info ffprobe.Info
	err  error
}

// Fill probes every pending source (and failed sources when RetryFailed is
// set) and records the outcome in the manifest with a single write.
//
// A failed probe marks only that source failed. Fill returns
// ErrNoProbedSources when no source ends up probed, and the context error
// when cancelled; completed probes are still recorded in both cases.
func (c *Cache) Fill(ctx context.Context, m *models.Manifest) (Result, error) {
	var res Result
	todo := m.SourcesByStatus(models.SourcePending)
	if c.opts.RetryFailed {
		todo = append(todo, m.SourcesByStatus(models.SourceFailed)...)
	}
	res.Cached = len(m.SourcesByStatus(models.SourceProbed))

	if len(todo) > 0 {
		outcomes := c.probeAll(ctx, m.SrcDir, todo)

		err := c.store.Commit(m, func(*models.Manifest) {
			// Applied in source order, not completion order.
			for i, s := range todo {
				o := outcomes[i]
				if o == nil {
					continue
				}
				if o.err == nil {
					o.err = s.MarkProbed(o.info.DurationSeconds, o.info.HasAudio)
				}
				if o.err != nil {
					s.MarkFailed(o.err)
					res.Failed++
					c.logger.Warn().Str("source", s.Path).Err(o.err).Msg("probe failed, source excluded")
					continue
				}
				res.Probed++
				c.logger.Debug().
					Str("source", s.Path).
					Float64("duration", s.DurationSeconds).
					Bool("audio", s.HasAudio).
					Msg("probed")
			}
		})
		if err != nil {
			return res, fmt.Errorf("save probe results: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(m.SourcesByStatus(models.SourceProbed)) == 0 {
		return res, fmt.Errorf("%w: %d source(s), none with a usable duration", ErrNoProbedSources, len(m.Sources))
	}

	c.logger.Info().
		Int("probed", res.Probed).
		Int("failed", res.Failed).
		Int("cached", res.Cached).
		Msg("probe stage complete")
	return res, nil
}

// probeAll runs the prober over sources with bounded concurrency. Entries for
// probes interrupted by cancellation are left nil.
func (c *Cache) probeAll(ctx context.Context, srcDir string, sources []*models.SourceRecord) []*outcome {
	outcomes := make([]*outcome, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, s := range sources {
		path := filepath.Join(srcDir, filepath.FromSlash(s.Path))
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			info, err := c.prober.Probe(gctx, path)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrProbe, err)
			}
			outcomes[i] = &outcome{info: info, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
