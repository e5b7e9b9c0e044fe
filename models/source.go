// Package models provides the persisted job state for the auto-edit pipeline.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceStatus is the probe state of a source file.
type SourceStatus string

const (
	SourcePending SourceStatus = "pending"
	SourceProbed  SourceStatus = "probed"
	SourceFailed  SourceStatus = "failed"
)

// SourceRecord represents one input video discovered under the source directory.
//
// Path is relative to the job's source directory and slash separated, so it
// stays stable across runs and machines. DurationSeconds and HasAudio are set
// by the first successful probe and never change for the life of the job,
// even if the source later fails.
type SourceRecord struct {
	Path            string       `json:"path"`
	SizeBytes       int64        `json:"size_bytes"`
	ModTime         time.Time    `json:"mod_time"`
	BaseEpoch       int64        `json:"base_epoch"`
	Status          SourceStatus `json:"status"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
	HasAudio        bool         `json:"has_audio,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// NewSourceRecord creates a pending SourceRecord.
func NewSourceRecord(path string, size int64, modTime time.Time, baseEpoch int64) (*SourceRecord, error) {
	s := &SourceRecord{
		Path:      path,
		SizeBytes: size,
		ModTime:   modTime.UTC(),
		BaseEpoch: baseEpoch,
		Status:    SourcePending,
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	return s, nil
}

// Validate checks if the SourceRecord has consistent state.
func (s *SourceRecord) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	switch s.Status {
	case SourcePending, SourceFailed:
	case SourceProbed:
		if s.DurationSeconds <= 0 {
			return fmt.Errorf("probed source %s must have a positive duration", s.Path)
		}
	default:
		return fmt.Errorf("unknown source status %q", s.Status)
	}

	return nil
}

// MarkProbed records a successful probe. It refuses to overwrite the
// duration of a source that is already probed. A source that failed after
// an earlier successful probe keeps its recorded duration and audio flag.
func (s *SourceRecord) MarkProbed(duration float64, hasAudio bool) error {
	if s.Status == SourceProbed {
		return fmt.Errorf("source %s already probed", s.Path)
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %.3f", duration)
	}
	s.Status = SourceProbed
	if s.DurationSeconds <= 0 {
		s.DurationSeconds = duration
		s.HasAudio = hasAudio
	}
	s.Error = ""
	return nil
}

// MarkFailed records a failed probe, or a probed source that is no longer
// usable. A duration already recorded is kept.
func (s *SourceRecord) MarkFailed(err error) {
	s.Status = SourceFailed
	if err != nil {
		s.Error = err.Error()
	}
}
