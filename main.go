package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"autoedit/assembler"
	"autoedit/command"
	"autoedit/concatenator"
	"autoedit/config"
	"autoedit/encoder"
	"autoedit/ffprobe"
	"autoedit/internal/logging"
	"autoedit/internal/report"
	"autoedit/orchestrator"
	"autoedit/probecache"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 130 // standard exit code for SIGINT
)

var rootCmd = &cobra.Command{
	Use:   "autoedit",
	Short: "Build a highlight reel from a directory of videos",
	Long: "autoedit cuts clips from every video under --src-dir, encodes them with an\n" +
		"overlay clock and merges them into one reel in --autoedit-dir. Progress is\n" +
		"kept in a manifest there, so an interrupted run resumes where it stopped.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
		os.Exit(exitOK)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "autoedit: interrupted, progress saved")
		os.Exit(exitCancelled)
	default:
		fmt.Fprintf(os.Stderr, "autoedit: %v\n", err)
		os.Exit(exitFailure)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Init(logging.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})

	runner := newRunner(cfg, logger)
	prober := ffprobe.NewProber(runner, cfg.Tools.FFprobe, cfg.Execution.ProbeTimeout)
	enc := encoder.NewFFmpeg(runner, cfg.Tools.FFmpeg, cfg.Execution.EncodeTimeout, logger)

	o := orchestrator.New(jobOptions(cfg), prober, enc, newMerger(cfg, runner, logger), logger)
	stages := &stageTracker{logger: logger}
	o.SetStageCallback(stages.enter)
	res, runErr := o.Run(cmd.Context())

	if m := res.Manifest; m != nil {
		switch {
		case res.DryRun:
			fmt.Fprint(cmd.OutOrStdout(), report.RenderPlan(m))
		case !errors.Is(runErr, context.Canceled):
			_ = report.Write(cmd.ErrOrStderr(), report.FromManifest(m, res.Output, res.Resumed))
		}
	}
	if runErr != nil {
		return stages.wrap(runErr)
	}
	if res.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Base(res.Output))
	}
	return nil
}

// stageTracker logs stage transitions and remembers the last working stage,
// so a failure names where the job stopped.
type stageTracker struct {
	logger  zerolog.Logger
	current orchestrator.Stage
}

func (t *stageTracker) enter(s orchestrator.Stage) {
	t.logger.Info().Str("stage", string(s)).Msg("stage started")
	if s != orchestrator.StageReport {
		t.current = s
	}
}

func (t *stageTracker) wrap(err error) error {
	if err == nil || t.current == "" {
		return err
	}
	return fmt.Errorf("%s: %w", t.current, err)
}

func jobOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		SrcDir:      cfg.SrcDir,
		AutoeditDir: cfg.AutoeditDir,
		Plan:        cfg.PlanParams(),
		Encode:      cfg.EncodeParams(),
		Probe: probecache.Options{
			Workers:     cfg.Execution.ProbeWorkers,
			RetryFailed: cfg.RetryFailedProbes,
		},
		Clips: encoder.Options{
			Workers: cfg.Execution.EncodeWorkers,
			Retries: cfg.Execution.EncodeRetries,
		},
		Reset:     cfg.Reset,
		DryRun:    cfg.DryRun,
		Preflight: func() error { return checkTools(cfg) },
	}
}

// newRunner returns the process runner shared by all external tools. SVT-AV1
// logging is silenced unless verbose output was requested.
func newRunner(cfg *config.Config, logger zerolog.Logger) *command.Runner {
	r := command.NewRunner(logger)
	r.DebugCmds = cfg.DebugCmds
	r.Verbose = cfg.Verbose
	if !cfg.Verbose {
		r.Env = []string{"SVT_LOG=2"}
	}
	return r
}

func newMerger(cfg *config.Config, runner *command.Runner, logger zerolog.Logger) assembler.Merger {
	if cfg.Execution.Merger == config.MergerFFmpeg {
		return concatenator.NewFFmpegConcat(runner, cfg.Tools.FFmpeg, cfg.Execution.MergeTimeout)
	}
	return concatenator.NewMKVMerge(runner, cfg.Tools.MKVMerge, cfg.Execution.MergeTimeout, logger)
}

// checkTools verifies the external tools the run will call are installed.
// A dry run only probes.
func checkTools(cfg *config.Config) error {
	tools := cfg.RequiredTools()
	if cfg.DryRun {
		tools = []string{cfg.Tools.FFprobe}
	}
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found in PATH: %v", missing)
	}
	return nil
}
