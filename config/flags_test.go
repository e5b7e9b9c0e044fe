package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("autoedit", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return fs
}

func TestMergeFromFlags_RequiredFlags(t *testing.T) {
	fs := parseFlags(t, "--src-dir", "/in", "--autoedit-dir", "/out")

	cfg := DefaultConfig()
	if err := cfg.MergeFromFlags(fs); err != nil {
		t.Fatalf("Expected no error with required flags, got: %v", err)
	}

	if cfg.SrcDir != "/in" {
		t.Errorf("Expected src dir '/in', got '%s'", cfg.SrcDir)
	}
	if cfg.AutoeditDir != "/out" {
		t.Errorf("Expected autoedit dir '/out', got '%s'", cfg.AutoeditDir)
	}
}

func TestMergeFromFlags_OnlyChangedFlagsOverride(t *testing.T) {
	fs := parseFlags(t, "--target", "120")

	cfg := DefaultConfig()
	cfg.Plan.Min = 3 // e.g. from a config file
	cfg.Encode.OpusBitrate = "64k"
	if err := cfg.MergeFromFlags(fs); err != nil {
		t.Fatal(err)
	}

	if cfg.Plan.Target != 120 {
		t.Errorf("Expected target 120, got %f", cfg.Plan.Target)
	}
	if cfg.Plan.Min != 3 {
		t.Errorf("Unset flag must not reset min, got %f", cfg.Plan.Min)
	}
	if cfg.Encode.OpusBitrate != "64k" {
		t.Errorf("Unset flag must not reset bitrate, got %s", cfg.Encode.OpusBitrate)
	}
}

func TestMergeFromFlags_AllSettings(t *testing.T) {
	fs := parseFlags(t,
		"--min", "4", "--max", "12", "--seed", "77",
		"--svt-preset", "9", "--svt-crf", "40", "--svt-lp", "3",
		"--opus-br", "160k", "--tp", "-1.5", "--fontfile", "/f.ttf",
		"--probe-workers", "8", "--encode-workers", "2", "--encode-retries", "0",
		"--probe-timeout", "10s", "--encode-timeout", "5m", "--merge-timeout", "1h",
		"--merger", "ffmpeg",
		"--reset", "--retry-failed-probes", "--dry-run", "--debug-cmds", "-v", "--log-json",
	)

	cfg := DefaultConfig()
	if err := cfg.MergeFromFlags(fs); err != nil {
		t.Fatal(err)
	}

	if cfg.Plan.Min != 4 || cfg.Plan.Max != 12 || cfg.Plan.Seed != 77 {
		t.Errorf("Unexpected plan %+v", cfg.Plan)
	}
	if cfg.Encode.SVTPreset != 9 || cfg.Encode.SVTCRF != 40 || cfg.Encode.SVTLP != 3 {
		t.Errorf("Unexpected svt %+v", cfg.Encode)
	}
	if cfg.Encode.OpusBitrate != "160k" || cfg.Encode.TruePeak != "-1.5" || cfg.Encode.FontFile != "/f.ttf" {
		t.Errorf("Unexpected encode %+v", cfg.Encode)
	}
	x := cfg.Execution
	if x.ProbeWorkers != 8 || x.EncodeWorkers != 2 || x.EncodeRetries != 0 {
		t.Errorf("Unexpected workers %+v", x)
	}
	if x.ProbeTimeout != 10*time.Second || x.EncodeTimeout != 5*time.Minute || x.MergeTimeout != time.Hour {
		t.Errorf("Unexpected timeouts %+v", x)
	}
	if x.Merger != MergerFFmpeg {
		t.Errorf("Expected ffmpeg merger, got %s", x.Merger)
	}
	if !cfg.Reset || !cfg.RetryFailedProbes || !cfg.DryRun || !cfg.DebugCmds || !cfg.Verbose || !cfg.LogJSON {
		t.Errorf("Expected all behavioral flags set, got %+v", cfg)
	}
}

func TestRegisterFlags_UnknownFlag(t *testing.T) {
	fs := pflag.NewFlagSet("autoedit", pflag.ContinueOnError)
	fs.SetOutput(new(discard))
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--input", "x"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
