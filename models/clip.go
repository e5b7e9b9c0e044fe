package models

import (
	"fmt"
	"strings"
)

// ClipStatus is the encode state of a planned clip.
type ClipStatus string

const (
	ClipPlanned  ClipStatus = "planned"
	ClipEncoding ClipStatus = "encoding"
	ClipDone     ClipStatus = "done"
	ClipFailed   ClipStatus = "failed"
)

// ClipRecord represents one planned sub-clip of a source.
//
// SequenceIndex is assigned by the planner and fixes the position of the
// clip in the final reel, independent of the order clips finish encoding.
//
// StartSeconds and LengthSeconds use float64 to preserve fractional seconds.
type ClipRecord struct {
	SequenceIndex int        `json:"sequence_index"`
	SourcePath    string     `json:"source_path"`
	StartSeconds  float64    `json:"start_seconds"`
	LengthSeconds float64    `json:"length_seconds"`
	Epoch         int64      `json:"epoch"`
	Status        ClipStatus `json:"status"`
	OutputPath    string     `json:"output_path,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// NewClipRecord creates a planned ClipRecord with validation.
//
// Returns an error if:
//   - sourcePath is empty or whitespace-only
//   - sequenceIndex is not positive
//   - start is negative or length is not positive
func NewClipRecord(seq int, sourcePath string, start, length float64, epoch int64) (*ClipRecord, error) {
	c := &ClipRecord{
		SequenceIndex: seq,
		SourcePath:    sourcePath,
		StartSeconds:  start,
		LengthSeconds: length,
		Epoch:         epoch,
		Status:        ClipPlanned,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clip: %w", err)
	}
	return c, nil
}

// Validate checks if the ClipRecord has valid data.
func (c *ClipRecord) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("source_path cannot be empty")
	}

	if c.SequenceIndex <= 0 {
		return fmt.Errorf("sequence_index must be positive")
	}

	if c.StartSeconds < 0 {
		return fmt.Errorf("start_seconds cannot be negative")
	}

	if c.LengthSeconds <= 0 {
		return fmt.Errorf("length_seconds must be greater than 0")
	}

	if c.Status == ClipDone && strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("done clip must have an output_path")
	}

	return nil
}

// EndSeconds returns the offset in the source where the clip ends.
func (c *ClipRecord) EndSeconds() float64 {
	return c.StartSeconds + c.LengthSeconds
}

// Terminal reports whether the clip reached done or failed.
func (c *ClipRecord) Terminal() bool {
	return c.Status == ClipDone || c.Status == ClipFailed
}

// CountsTowardTarget reports whether the clip's length is part of the planned
// total. Failed clips still count: they are retried, not replanned.
func (c *ClipRecord) CountsTowardTarget() bool {
	switch c.Status {
	case ClipPlanned, ClipEncoding, ClipDone, ClipFailed:
		return true
	}
	return false
}
