package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	// Required fields
	if c.SrcDir == "" {
		errors = append(errors, "source directory is required")
	} else if info, err := os.Stat(c.SrcDir); err != nil || !info.IsDir() {
		errors = append(errors, fmt.Sprintf("source directory must be an existing directory: %s", c.SrcDir))
	}

	if c.AutoeditDir == "" {
		errors = append(errors, "autoedit directory is required")
	} else if info, err := os.Stat(c.AutoeditDir); err == nil && !info.IsDir() {
		errors = append(errors, fmt.Sprintf("autoedit directory is not a directory: %s", c.AutoeditDir))
	}

	if err := c.Plan.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("plan config: %v", err))
	}

	if err := c.Encode.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("encode config: %v", err))
	}

	if err := c.Execution.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("execution config: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if planning configuration is valid
func (pc *PlanConfig) Validate() error {
	var errors []string

	if pc.Target <= 0 {
		errors = append(errors, "target must be positive")
	}

	if pc.Min <= 0 {
		errors = append(errors, "min must be positive")
	}

	if pc.Max <= 0 {
		errors = append(errors, "max must be positive")
	}

	if pc.Min > pc.Max {
		errors = append(errors, fmt.Sprintf("min (%g) cannot exceed max (%g)", pc.Min, pc.Max))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

var bitratePattern = regexp.MustCompile(`^\d+(\.\d+)?[kKmM]?$`)

// Validate checks if encode configuration is valid
func (ec *EncodeConfig) Validate() error {
	var errors []string

	if ec.SVTPreset < -2 || ec.SVTPreset > 13 {
		errors = append(errors, "svt preset must be between -2 and 13")
	}

	if ec.SVTCRF < 1 || ec.SVTCRF > 63 {
		errors = append(errors, "svt crf must be between 1 and 63")
	}

	if ec.SVTLP < 0 {
		errors = append(errors, "svt lp cannot be negative")
	}

	if !bitratePattern.MatchString(ec.OpusBitrate) {
		errors = append(errors, fmt.Sprintf("opus bitrate %q must look like 128k", ec.OpusBitrate))
	}

	if tp := strings.TrimSpace(ec.TruePeak); tp != "" && !strings.EqualFold(tp, "none") {
		if v, err := strconv.ParseFloat(tp, 64); err != nil || v > 0 {
			errors = append(errors, fmt.Sprintf("tp %q must be a dBFS value <= 0", ec.TruePeak))
		}
	}

	if ec.FontFile == "" {
		errors = append(errors, "fontfile is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

// Validate checks if execution configuration is valid
func (xc *ExecutionConfig) Validate() error {
	var errors []string

	if xc.ProbeWorkers < 1 {
		errors = append(errors, "probe workers must be at least 1")
	}

	if xc.EncodeWorkers < 1 {
		errors = append(errors, "encode workers must be at least 1")
	}

	if xc.EncodeRetries < 0 {
		errors = append(errors, "encode retries cannot be negative")
	}

	if xc.ProbeTimeout < 0 || xc.EncodeTimeout < 0 || xc.MergeTimeout < 0 {
		errors = append(errors, "timeouts cannot be negative (use 0 for none)")
	}

	if !IsValidMerger(xc.Merger) {
		errors = append(errors, fmt.Sprintf("invalid merger '%s', must be one of: %s",
			xc.Merger, strings.Join(MergerValues(), ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}
