package config

import (
	"time"

	"autoedit/models"
)

// Config holds all autoedit configuration options
type Config struct {
	// Required fields
	SrcDir      string `yaml:"src_dir"`
	AutoeditDir string `yaml:"autoedit_dir"`

	// Planning bounds (seconds)
	Plan PlanConfig `yaml:"plan"`

	// Clip encoding settings
	Encode EncodeConfig `yaml:"encode"`

	// Concurrency, retries and timeouts
	Execution ExecutionConfig `yaml:"execution"`

	// External tool binaries
	Tools ToolsConfig `yaml:"tools"`

	// Behavioral flags
	Reset             bool `yaml:"-"` // Discard the existing manifest
	RetryFailedProbes bool `yaml:"retry_failed_probes"`
	DryRun            bool `yaml:"-"` // Plan and print, do not encode
	DebugCmds         bool `yaml:"debug_cmds"`
	Verbose           bool `yaml:"verbose"`
	LogJSON           bool `yaml:"log_json"`
}

// PlanConfig holds the reel length constraints
type PlanConfig struct {
	Target float64 `yaml:"target"` // total seconds
	Min    float64 `yaml:"min"`    // shortest clip
	Max    float64 `yaml:"max"`    // longest clip
	Seed   uint64  `yaml:"seed"`   // 0 = derive from the job id
}

// EncodeConfig holds per-clip encoder settings
type EncodeConfig struct {
	SVTPreset   int    `yaml:"svt_preset"`   // 0-13, higher = faster
	SVTCRF      int    `yaml:"svt_crf"`      // 1-63, lower = better quality
	SVTLP       int    `yaml:"svt_lp"`       // SVT-AV1 lp parameter
	OpusBitrate string `yaml:"opus_bitrate"` // e.g., "128k"
	TruePeak    string `yaml:"tp"`           // limiter ceiling in dB, empty = no limiter
	FontFile    string `yaml:"fontfile"`     // overlay font
}

// ExecutionConfig holds worker and timeout settings
type ExecutionConfig struct {
	ProbeWorkers  int           `yaml:"probe_workers"`
	EncodeWorkers int           `yaml:"encode_workers"`
	EncodeRetries int           `yaml:"encode_retries"` // extra attempts per clip
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`  // 0 = no limit
	EncodeTimeout time.Duration `yaml:"encode_timeout"`
	MergeTimeout  time.Duration `yaml:"merge_timeout"`
	Merger        string        `yaml:"merger"` // "mkvmerge" or "ffmpeg"
}

// ToolsConfig names the external executables
type ToolsConfig struct {
	FFmpeg   string `yaml:"ffmpeg"`
	FFprobe  string `yaml:"ffprobe"`
	MKVMerge string `yaml:"mkvmerge"`
}

// Merger names
const (
	MergerMKVMerge = "mkvmerge"
	MergerFFmpeg   = "ffmpeg"
)

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		// Required - must be provided by user
		SrcDir:      "",
		AutoeditDir: "",

		// Ten minute reel of 6-9 second clips
		Plan: PlanConfig{
			Target: 600,
			Min:    6,
			Max:    9,
		},

		// AV1 + Opus
		Encode: EncodeConfig{
			SVTPreset:   5,
			SVTCRF:      32,
			SVTLP:       5,
			OpusBitrate: "128k",
			TruePeak:    "", // No limiter
			FontFile:    "/usr/share/fonts/TTF/DejaVuSansMono.ttf",
		},

		// Probes are cheap, encodes already use several cores each
		Execution: ExecutionConfig{
			ProbeWorkers:  4,
			EncodeWorkers: 1,
			EncodeRetries: 1,
			ProbeTimeout:  time.Minute,
			EncodeTimeout: 0,
			MergeTimeout:  0,
			Merger:        MergerMKVMerge,
		},

		Tools: ToolsConfig{
			FFmpeg:   "ffmpeg",
			FFprobe:  "ffprobe",
			MKVMerge: "mkvmerge",
		},
	}
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	cp := *c
	return &cp
}

// MergerValues returns valid merger values
func MergerValues() []string {
	return []string{MergerMKVMerge, MergerFFmpeg}
}

// IsValidMerger checks if merger is valid
func IsValidMerger(merger string) bool {
	for _, valid := range MergerValues() {
		if merger == valid {
			return true
		}
	}
	return false
}

// RequiredTools returns the executables a full run needs.
func (c *Config) RequiredTools() []string {
	merger := c.Tools.MKVMerge
	if c.Execution.Merger == MergerFFmpeg {
		merger = c.Tools.FFmpeg
	}
	tools := []string{c.Tools.FFprobe, c.Tools.FFmpeg}
	if merger != c.Tools.FFmpeg {
		tools = append(tools, merger)
	}
	return tools
}

// PlanParams returns the planning bounds frozen into a new job.
func (c *Config) PlanParams() models.PlanParams {
	return models.PlanParams{
		TargetSeconds:  c.Plan.Target,
		MinClipSeconds: c.Plan.Min,
		MaxClipSeconds: c.Plan.Max,
		Seed:           c.Plan.Seed,
	}
}

// EncodeParams returns the encoder settings frozen into a new job.
func (c *Config) EncodeParams() models.EncodeParams {
	return models.EncodeParams{
		SVTPreset:   c.Encode.SVTPreset,
		SVTCRF:      c.Encode.SVTCRF,
		SVTLP:       c.Encode.SVTLP,
		OpusBitrate: c.Encode.OpusBitrate,
		TruePeak:    c.Encode.TruePeak,
		FontFile:    c.Encode.FontFile,
	}
}
