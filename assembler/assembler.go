// Package assembler merges the finished clips of a job into the final reel
// and keeps the manifest's final record in step with the file on disk.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoedit/internal/logging"
	"autoedit/internal/timeutil"
	"autoedit/manifest"
	"autoedit/models"
)

var (
	// ErrAssemble wraps a merge failure.
	ErrAssemble = errors.New("assemble failed")
	// ErrNotReady is returned when not every clip is done with its file present.
	ErrNotReady = errors.New("clips not ready for assembly")
)

// OutputSuffix follows the capture span in the reel's file name.
const OutputSuffix = " auto-edit.mkv"

// Merger concatenates clip files, in the given order, into out.
type Merger interface {
	Merge(ctx context.Context, paths []string, out string) error
}

// Assembler produces the final reel.
type Assembler struct {
	merger Merger
	store  *manifest.Store
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// New creates an Assembler. Span names are rendered in loc.
func New(merger Merger, store *manifest.Store, loc *time.Location, logger zerolog.Logger) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{
		merger: merger,
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logging.WithComponent(logger, "assemble"),
	}
}

// OutputName returns the reel name for a capture span.
func OutputName(start, end int64, loc *time.Location) string {
	return timeutil.SpanName(start, end, loc) + OutputSuffix
}

// OutputPath returns where the reel for m is written.
func (a *Assembler) OutputPath(m *models.Manifest) (string, error) {
	start, end, ok := m.EpochSpan()
	if !ok {
		return "", fmt.Errorf("%w: no probed sources", ErrNotReady)
	}
	return filepath.Join(a.store.Dir(), OutputName(start, end, a.loc)), nil
}

// Assemble merges all clips in sequence order. The merger writes to a .part
// file that is renamed into place on success, so a done final always names a
// complete file. Clip records are never modified.
func (a *Assembler) Assemble(ctx context.Context, m *models.Manifest) (string, error) {
	paths, err := readyClips(m)
	if err != nil {
		return "", err
	}
	out, err := a.OutputPath(m)
	if err != nil {
		return "", err
	}

	if err := a.store.Commit(m, func(m *models.Manifest) {
		if m.Final == nil {
			m.Final = &models.FinalRecord{}
		}
		m.Final.Reset()
		m.Final.Status = models.FinalAssembling
	}); err != nil {
		return "", fmt.Errorf("save final state: %w", err)
	}

	part := out + ".part"
	_ = os.Remove(part)

	a.logger.Info().Int("clips", len(paths)).Str("output", filepath.Base(out)).Msg("merging clips")
	start := time.Now()

	mergeErr := a.merger.Merge(ctx, paths, part)
	if mergeErr == nil {
		if err := os.Rename(part, out); err != nil {
			mergeErr = fmt.Errorf("rename %s: %w", part, err)
		}
	}
	if mergeErr != nil {
		_ = os.Remove(part)
		if ctx.Err() != nil {
			_ = a.store.Commit(m, func(m *models.Manifest) { m.Final.Reset() })
			return "", ctx.Err()
		}
		mergeErr = fmt.Errorf("%w: %w", ErrAssemble, mergeErr)
		if err := a.store.Commit(m, func(m *models.Manifest) { m.Final.MarkFailed(mergeErr) }); err != nil {
			return "", errors.Join(mergeErr, err)
		}
		return "", mergeErr
	}

	if err := a.store.Commit(m, func(m *models.Manifest) { m.Final.MarkDone(out, a.now()) }); err != nil {
		return "", fmt.Errorf("save final state: %w", err)
	}
	a.logger.Info().Dur("elapsed", time.Since(start)).Str("output", out).Msg("reel assembled")
	return out, nil
}

// readyClips returns clip files in sequence order, or ErrNotReady.
func readyClips(m *models.Manifest) ([]string, error) {
	ordered := m.OrderedClips()
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: no clips", ErrNotReady)
	}

	var paths, pending []string
	for _, c := range ordered {
		if c.Status != models.ClipDone || !manifest.FileReady(c.OutputPath) {
			pending = append(pending, fmt.Sprintf("%d(%s)", c.SequenceIndex, c.Status))
			continue
		}
		paths = append(paths, c.OutputPath)
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, strings.Join(pending, ", "))
	}
	return paths, nil
}
