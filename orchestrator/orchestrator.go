// Package orchestrator drives one auto-edit job through its stages:
// discover, probe, plan, encode, assemble and report. Every stage reads and
// extends the job manifest, so a run can stop at any point and the next run
// picks up where it left off.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"autoedit/assembler"
	"autoedit/encoder"
	"autoedit/internal/logging"
	"autoedit/internal/timeutil"
	"autoedit/manifest"
	"autoedit/models"
	"autoedit/planner"
	"autoedit/probecache"
)

var (
	// ErrDiscovery is returned when the source directory cannot be read.
	ErrDiscovery = errors.New("discovery failed")
	// ErrSourceMismatch is returned when the job directory belongs to a
	// different source directory.
	ErrSourceMismatch = errors.New("job belongs to another source directory")
)

// errSourceVanished is recorded on sources whose file disappeared.
var errSourceVanished = errors.New("source file no longer present")

// Stage names one step of a job.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageProbe    Stage = "probe"
	StagePlan     Stage = "plan"
	StageEncode   Stage = "encode"
	StageAssemble Stage = "assemble"
	StageReport   Stage = "report"
)

// Options configure one job run.
type Options struct {
	SrcDir      string
	AutoeditDir string

	// Plan and Encode apply to new jobs only. A resumed job keeps the
	// parameters recorded in its manifest.
	Plan   models.PlanParams
	Encode models.EncodeParams

	Probe probecache.Options
	Clips encoder.Options

	// Reset replaces any existing manifest with a new job.
	Reset bool
	// DryRun stops after planning.
	DryRun bool
	// Location renders reel names. Defaults to time.Local.
	Location *time.Location
	// Preflight runs before the first external tool call. It is skipped when
	// the job is already complete.
	Preflight func() error
}

// Result describes the outcome of a run.
type Result struct {
	Output   string
	Manifest *models.Manifest
	// Resumed is set when the reel already existed and nothing ran.
	Resumed bool
	DryRun  bool
	Probe   probecache.Result
	Plan    planner.Result
	Encode  encoder.Result
}

// Orchestrator runs jobs against a Prober, an Encoder and a Merger.
type Orchestrator struct {
	opts    Options
	prober  probecache.Prober
	enc     encoder.Encoder
	merger  assembler.Merger
	logger  zerolog.Logger
	now     func() time.Time
	onStage func(Stage)
}

// New creates an Orchestrator.
func New(opts Options, prober probecache.Prober, enc encoder.Encoder, merger assembler.Merger, logger zerolog.Logger) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Orchestrator{
		opts:   opts,
		prober: prober,
		enc:    enc,
		merger: merger,
		logger: logging.WithComponent(logger, "orchestrator"),
		now:    time.Now,
	}
}

// SetStageCallback sets a callback invoked as each stage starts.
func (o *Orchestrator) SetStageCallback(callback func(Stage)) {
	o.onStage = callback
}

func (o *Orchestrator) enter(s Stage) {
	if o.onStage != nil {
		o.onStage(s)
	}
}

// Run executes the job. The job directory is locked for the whole run; a
// concurrent run fails with manifest.ErrLocked.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	var res Result

	srcDir, err := filepath.Abs(o.opts.SrcDir)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	jobDir, err := filepath.Abs(o.opts.AutoeditDir)
	if err != nil {
		return res, fmt.Errorf("resolve autoedit dir: %w", err)
	}
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return res, fmt.Errorf("create autoedit dir: %w", err)
	}

	lock, err := manifest.AcquireLock(jobDir)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Warn().Err(err).Msg("failed to release job lock")
		}
	}()

	store := manifest.NewStore(jobDir)
	m, err := o.load(store, srcDir)
	if err != nil {
		return res, err
	}
	res.Manifest = m

	if v := manifest.Revalidate(m); v.Changed() {
		o.logger.Warn().
			Int("interrupted", v.InterruptedClips).
			Int("missing", v.MissingClips).
			Bool("final_reset", v.FinalReset).
			Msg("manifest state contradicted by files on disk, rescheduling")
		if err := store.Save(m); err != nil {
			return res, fmt.Errorf("save manifest: %w", err)
		}
	}

	if m.Final != nil && m.Final.Status == models.FinalDone {
		o.enter(StageReport)
		o.logger.Info().Str("output", m.Final.OutputPath).Msg("job already complete")
		res.Output = m.Final.OutputPath
		res.Resumed = true
		return res, nil
	}

	if o.opts.Preflight != nil {
		if err := o.opts.Preflight(); err != nil {
			return res, err
		}
	}

	o.enter(StageDiscover)
	if err := o.discover(store, m, jobDir); err != nil {
		return res, err
	}

	o.enter(StageProbe)
	cache := probecache.New(o.prober, store, o.opts.Probe, o.logger)
	if res.Probe, err = cache.Fill(ctx, m); err != nil {
		return res, err
	}

	o.enter(StagePlan)
	if res.Plan, err = o.plan(store, m); err != nil {
		return res, err
	}

	if o.opts.DryRun {
		o.enter(StageReport)
		res.DryRun = true
		return res, nil
	}

	o.enter(StageEncode)
	clips := encoder.NewClipEncoder(o.enc, store, o.opts.Clips, o.logger)
	if res.Encode, err = clips.Run(ctx, m); err != nil {
		return res, err
	}

	o.enter(StageAssemble)
	asm := assembler.New(o.merger, store, o.opts.Location, o.logger)
	out, err := asm.Assemble(ctx, m)
	o.enter(StageReport)
	if err != nil {
		return res, err
	}
	res.Output = out
	return res, nil
}

// load returns the job manifest, creating a new one when none exists or a
// reset was requested. A new manifest is not written until discovery
// succeeds.
func (o *Orchestrator) load(store *manifest.Store, srcDir string) (*models.Manifest, error) {
	fresh := func() *models.Manifest {
		m := manifest.New(srcDir, o.opts.Plan, o.opts.Encode, o.now())
		o.logger.Info().Str("job", m.JobID).Uint64("seed", m.Plan.Seed).Msg("starting new job")
		return m
	}

	if o.opts.Reset {
		o.logger.Info().Str("manifest", store.Path()).Msg("reset requested, discarding previous job")
		return fresh(), nil
	}

	m, err := store.Load()
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		return fresh(), nil
	case errors.Is(err, manifest.ErrCorrupt):
		return nil, fmt.Errorf("%w (run with --reset to start over)", err)
	case err != nil:
		return nil, err
	}

	if filepath.Clean(m.SrcDir) != srcDir {
		return nil, fmt.Errorf("%w: %s was created for %s (run with --reset to start over)", ErrSourceMismatch, store.Path(), m.SrcDir)
	}
	if m.Plan.TargetSeconds != o.opts.Plan.TargetSeconds ||
		m.Plan.MinClipSeconds != o.opts.Plan.MinClipSeconds ||
		m.Plan.MaxClipSeconds != o.opts.Plan.MaxClipSeconds ||
		m.Encode != o.opts.Encode {
		o.logger.Warn().Msg("job parameters differ from the current configuration, keeping the recorded ones")
	}
	o.logger.Info().
		Str("job", m.JobID).
		Int("sources", len(m.Sources)).
		Int("clips", len(m.Clips)).
		Msg("resuming job")
	return m, nil
}

// discover reconciles the manifest's source set with the files on disk. New
// files are added as pending. Recorded sources whose file vanished are marked
// failed and their unfinished clips are dropped, so planning can replace them
// from the remaining sources. Done clips are kept.
func (o *Orchestrator) discover(store *manifest.Store, m *models.Manifest, jobDir string) error {
	files, skipped, err := discover(m.SrcDir, jobDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if skipped > 0 {
		o.logger.Warn().
			Str("autoedit_dir", jobDir).
			Int("videos", skipped).
			Msg("videos directly inside the autoedit dir are not used as sources")
		if len(files) == 0 && len(m.Sources) == 0 {
			return fmt.Errorf("%w: all %d video(s) sit directly in the autoedit dir %s; use a separate --autoedit-dir",
				ErrDiscovery, skipped, jobDir)
		}
	}

	found := make(map[string]bool, len(files))
	var added []*models.SourceRecord
	var bytes int64
	for _, f := range files {
		found[f.Path] = true
		bytes += f.Size
		if m.Source(f.Path) != nil {
			continue
		}
		epoch := timeutil.BaseEpoch(filepath.Base(f.Path), f.ModTime, o.opts.Location)
		s, err := models.NewSourceRecord(f.Path, f.Size, f.ModTime, epoch)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		added = append(added, s)
	}

	var vanished []string
	dropped := 0
	err = store.Commit(m, func(m *models.Manifest) {
		m.Sources = append(m.Sources, added...)
		sort.Slice(m.Sources, func(i, j int) bool { return m.Sources[i].Path < m.Sources[j].Path })

		for _, s := range m.Sources {
			if found[s.Path] {
				continue
			}
			vanished = append(vanished, s.Path)
			if s.Status != models.SourceFailed {
				s.MarkFailed(errSourceVanished)
			}
		}
		if len(vanished) == 0 {
			return
		}
		dropped = m.RetireClips(func(c *models.ClipRecord) bool {
			return c.Status != models.ClipDone && !found[c.SourcePath]
		})
	})
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	for _, path := range vanished {
		o.logger.Warn().Str("source", path).Msg("recorded source no longer present")
	}
	if dropped > 0 {
		o.logger.Warn().Int("clips", dropped).Msg("dropped unfinished clips of vanished sources")
	}

	p := message.NewPrinter(language.English)
	o.logger.Info().
		Int("files", len(files)).
		Int("new", len(added)).
		Str("bytes", p.Sprintf("%d", bytes)).
		Msg("sources discovered")
	return nil
}

// plan extends the clip sequence up to the target and records the new clips
// with one manifest write.
func (o *Orchestrator) plan(store *manifest.Store, m *models.Manifest) (planner.Result, error) {
	res, err := planner.Plan(m)
	if err != nil {
		return res, err
	}
	if len(res.Added) > 0 {
		if err := store.Commit(m, func(m *models.Manifest) {
			m.Clips = append(m.Clips, res.Added...)
		}); err != nil {
			return res, fmt.Errorf("save plan: %w", err)
		}
	}

	log := o.logger.Info()
	if res.Exhausted {
		log = o.logger.Warn()
	}
	log.Int("added", len(res.Added)).
		Int("clips", len(m.Clips)).
		Str("total", timeutil.FormatSeconds(res.TotalSeconds)).
		Str("target", timeutil.FormatSeconds(m.Plan.TargetSeconds)).
		Bool("exhausted", res.Exhausted).
		Msg("plan ready")
	return res, nil
}
