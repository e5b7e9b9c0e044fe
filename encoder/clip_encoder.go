package encoder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"autoedit/internal/logging"
	"autoedit/internal/timeutil"
	"autoedit/manifest"
	"autoedit/models"
)

// ErrClipsFailed is returned when at least one clip ended the run failed.
var ErrClipsFailed = errors.New("clips failed")

// Options tune a ClipEncoder.
type Options struct {
	// Workers bounds concurrent encodes. Values below 1 mean 1.
	Workers int
	// Retries is the number of extra attempts per clip within one run.
	Retries int
}

// Result summarizes one Run.
type Result struct {
	Encoded int
	Failed  []*models.ClipRecord
	Skipped int // already done
}

// ClipEncoder drives an Encoder over the manifest's unfinished clips.
type ClipEncoder struct {
	enc    Encoder
	store  *manifest.Store
	opts   Options
	logger zerolog.Logger
}

// NewClipEncoder creates a ClipEncoder.
func NewClipEncoder(enc Encoder, store *manifest.Store, opts Options, logger zerolog.Logger) *ClipEncoder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &ClipEncoder{
		enc:    enc,
		store:  store,
		opts:   opts,
		logger: logging.WithComponent(logger, "encode"),
	}
}

// Run encodes every planned or failed clip. Each successful clip is recorded
// with its own manifest write; failures are recorded and do not stop other
// clips. It returns ErrClipsFailed if any clip is failed afterwards.
func (e *ClipEncoder) Run(ctx context.Context, m *models.Manifest) (Result, error) {
	var res Result
	var todo []*models.ClipRecord
	for _, c := range m.OrderedClips() {
		switch c.Status {
		case models.ClipDone:
			res.Skipped++
		case models.ClipPlanned, models.ClipFailed:
			todo = append(todo, c)
		}
	}
	if len(todo) == 0 {
		return res, nil
	}

	e.logger.Info().Int("clips", len(todo)).Int("done", res.Skipped).Int("workers", e.opts.Workers).Msg("encoding clips")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, c := range todo {
		if gctx.Err() != nil {
			break
		}
		src := m.Source(c.SourcePath)
		if src == nil || src.Status != models.SourceProbed {
			err := fmt.Errorf("%w: source %s is not probed", ErrEncode, c.SourcePath)
			if cerr := e.fail(m, c, err); cerr != nil {
				return res, cerr
			}
			continue
		}
		req := Request{
			SourcePath: filepath.Join(m.SrcDir, filepath.FromSlash(src.Path)),
			HasAudio:   src.HasAudio,
			OutputPath: ClipPath(e.store.Dir(), c.SequenceIndex),
			Params:     m.Encode,
		}
		g.Go(func() error {
			return e.encodeOne(gctx, m, c, req)
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, c := range todo {
		switch c.Status {
		case models.ClipDone:
			res.Encoded++
		case models.ClipFailed:
			res.Failed = append(res.Failed, c)
		}
	}
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: %d of %d clip(s)", ErrClipsFailed, len(res.Failed), len(m.Clips))
	}
	return res, nil
}

// encodeOne returns an error only for manifest write failures; encode
// failures are recorded on the clip.
func (e *ClipEncoder) encodeOne(ctx context.Context, m *models.Manifest, c *models.ClipRecord, req Request) error {
	log := e.logger.With().Int("clip", c.SequenceIndex).Logger()

	var lastErr error
	for attempt := 0; attempt <= e.opts.Retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		e.store.Apply(m, func(*models.Manifest) {
			c.Status = models.ClipEncoding
			c.Attempts++
			req.Clip = *c
		})

		log.Info().
			Str("source", c.SourcePath).
			Str("at", timeutil.FormatSeconds(c.StartSeconds)).
			Float64("length", c.LengthSeconds).
			Int("attempt", attempt+1).
			Msg("clip start")
		start := time.Now()

		out, err := e.enc.Encode(ctx, req)
		if err == nil {
			log.Info().Dur("elapsed", time.Since(start)).Str("output", filepath.Base(out)).Msg("clip done")
			return e.store.Commit(m, func(*models.Manifest) {
				c.Status = models.ClipDone
				c.OutputPath = out
				c.Error = ""
			})
		}
		if ctx.Err() != nil {
			break
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("clip encode failed")
	}

	if ctx.Err() != nil {
		// Interrupted work is redone on the next run.
		e.store.Apply(m, func(*models.Manifest) {
			c.Status = models.ClipPlanned
		})
		return nil
	}
	return e.fail(m, c, fmt.Errorf("%w: %w", ErrEncode, lastErr))
}

func (e *ClipEncoder) fail(m *models.Manifest, c *models.ClipRecord, err error) error {
	e.logger.Error().Int("clip", c.SequenceIndex).Err(err).Msg("clip failed")
	return e.store.Commit(m, func(*models.Manifest) {
		c.Status = models.ClipFailed
		c.OutputPath = ""
		c.Error = err.Error()
	})
}
