package config

import (
	"github.com/spf13/pflag"
)

// Flag names that are read before the layered merge.
const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

// RegisterFlags defines every CLI flag on fs. Defaults shown in help come
// from DefaultConfig; only flags the user sets override lower layers.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()

	// Required fields
	fs.String("src-dir", d.SrcDir, "Directory containing source videos (required)")
	fs.String("autoedit-dir", d.AutoeditDir, "Output directory for the manifest, clips and reel (required)")

	// Config layers
	fs.String(FlagConfig, "", "Path to config file (default: search ./autoedit.yaml, ~/.autoedit/config.yaml, /etc/autoedit/config.yaml)")
	fs.String(FlagEnvFile, ".env", "Path to a dotenv file with environment defaults")

	// Planning
	fs.Float64("target", d.Plan.Target, "Target reel length in seconds")
	fs.Float64("min", d.Plan.Min, "Minimum clip length in seconds")
	fs.Float64("max", d.Plan.Max, "Maximum clip length in seconds")
	fs.Uint64("seed", d.Plan.Seed, "Planning seed for a new job (0 = derive from the job id)")

	// Encoding
	fs.Int("svt-preset", d.Encode.SVTPreset, "SVT-AV1 preset (0-13, higher = faster)")
	fs.Int("svt-crf", d.Encode.SVTCRF, "SVT-AV1 CRF (1-63, lower = better quality)")
	fs.Int("svt-lp", d.Encode.SVTLP, "SVT-AV1 lp parameter")
	fs.String("opus-br", d.Encode.OpusBitrate, "Opus audio bitrate, e.g., 128k")
	fs.String("tp", d.Encode.TruePeak, "True-peak ceiling in dBFS, e.g., -1.5 (empty = no limiter)")
	fs.String("fontfile", d.Encode.FontFile, "Font used for the timestamp overlay")

	// Execution
	fs.Int("probe-workers", d.Execution.ProbeWorkers, "Concurrent ffprobe calls")
	fs.Int("encode-workers", d.Execution.EncodeWorkers, "Concurrent clip encodes")
	fs.Int("encode-retries", d.Execution.EncodeRetries, "Extra attempts per clip within a run")
	fs.Duration("probe-timeout", d.Execution.ProbeTimeout, "Timeout per probe (0 = none)")
	fs.Duration("encode-timeout", d.Execution.EncodeTimeout, "Timeout per clip encode (0 = none)")
	fs.Duration("merge-timeout", d.Execution.MergeTimeout, "Timeout for the final merge (0 = none)")
	fs.String("merger", d.Execution.Merger, "Final merge tool: mkvmerge, ffmpeg")

	// Behavioral flags
	fs.Bool("reset", false, "Discard the existing manifest and start a new job")
	fs.Bool("retry-failed-probes", false, "Probe sources again that failed in an earlier run")
	fs.Bool("dry-run", false, "Probe and plan, print the plan, do not encode")
	fs.Bool("debug-cmds", false, "Log every external command before running it")
	fs.BoolP("verbose", "v", false, "Enable verbose logging")
	fs.Bool("log-json", false, "Log JSON lines instead of console output")
}

// MergeFromFlags overrides config values with flags explicitly set on fs.
func (c *Config) MergeFromFlags(fs *pflag.FlagSet) error {
	var firstErr error
	set := func(name string, apply func() error) {
		if firstErr != nil || !fs.Changed(name) {
			return
		}
		firstErr = apply()
	}
	str := func(name string, dst *string) {
		set(name, func() (err error) { *dst, err = fs.GetString(name); return })
	}
	integer := func(name string, dst *int) {
		set(name, func() (err error) { *dst, err = fs.GetInt(name); return })
	}
	float := func(name string, dst *float64) {
		set(name, func() (err error) { *dst, err = fs.GetFloat64(name); return })
	}
	boolean := func(name string, dst *bool) {
		set(name, func() (err error) { *dst, err = fs.GetBool(name); return })
	}

	// Required fields
	str("src-dir", &c.SrcDir)
	str("autoedit-dir", &c.AutoeditDir)

	// Planning
	float("target", &c.Plan.Target)
	float("min", &c.Plan.Min)
	float("max", &c.Plan.Max)
	set("seed", func() (err error) { c.Plan.Seed, err = fs.GetUint64("seed"); return })

	// Encoding
	integer("svt-preset", &c.Encode.SVTPreset)
	integer("svt-crf", &c.Encode.SVTCRF)
	integer("svt-lp", &c.Encode.SVTLP)
	str("opus-br", &c.Encode.OpusBitrate)
	str("tp", &c.Encode.TruePeak)
	str("fontfile", &c.Encode.FontFile)

	// Execution
	integer("probe-workers", &c.Execution.ProbeWorkers)
	integer("encode-workers", &c.Execution.EncodeWorkers)
	integer("encode-retries", &c.Execution.EncodeRetries)
	set("probe-timeout", func() (err error) { c.Execution.ProbeTimeout, err = fs.GetDuration("probe-timeout"); return })
	set("encode-timeout", func() (err error) { c.Execution.EncodeTimeout, err = fs.GetDuration("encode-timeout"); return })
	set("merge-timeout", func() (err error) { c.Execution.MergeTimeout, err = fs.GetDuration("merge-timeout"); return })
	str("merger", &c.Execution.Merger)

	// Behavioral flags
	boolean("reset", &c.Reset)
	boolean("retry-failed-probes", &c.RetryFailedProbes)
	boolean("dry-run", &c.DryRun)
	boolean("debug-cmds", &c.DebugCmds)
	boolean("verbose", &c.Verbose)
	boolean("log-json", &c.LogJSON)

	return firstErr
}
