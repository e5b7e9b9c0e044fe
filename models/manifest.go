package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ManifestVersion is the on-disk schema version written by this build.
const ManifestVersion = 1

// PlanParams are the planning bounds frozen into a job at creation.
type PlanParams struct {
	TargetSeconds  float64 `json:"target_seconds"`
	MinClipSeconds float64 `json:"min_clip_seconds"`
	MaxClipSeconds float64 `json:"max_clip_seconds"`
	Seed           uint64  `json:"seed"`
}

// Validate checks the planning bounds.
func (p PlanParams) Validate() error {
	if p.TargetSeconds <= 0 {
		return fmt.Errorf("target must be positive")
	}
	if p.MinClipSeconds <= 0 {
		return fmt.Errorf("min clip length must be positive")
	}
	if p.MinClipSeconds > p.MaxClipSeconds {
		return fmt.Errorf("min clip length %.3f exceeds max %.3f", p.MinClipSeconds, p.MaxClipSeconds)
	}
	return nil
}

// EncodeParams are the encoder settings frozen into a job at creation.
type EncodeParams struct {
	SVTPreset   int    `json:"svt_preset"`
	SVTCRF      int    `json:"svt_crf"`
	SVTLP       int    `json:"svt_lp"`
	OpusBitrate string `json:"opus_bitrate"`
	TruePeak    string `json:"true_peak,omitempty"`
	FontFile    string `json:"fontfile"`
}

// Manifest is the persisted aggregate of one job: the source set, the clip
// sequence and the final record. It is the sole source of truth for resume.
type Manifest struct {
	Version int          `json:"version"`
	JobID   string       `json:"job_id"`
	Created time.Time    `json:"created"`
	Updated time.Time    `json:"updated"`
	SrcDir  string       `json:"src_dir"`
	Plan    PlanParams   `json:"plan"`
	Encode  EncodeParams `json:"encode"`

	Sources []*SourceRecord `json:"sources"`
	Clips   []*ClipRecord   `json:"clips"`
	Final   *FinalRecord    `json:"final"`

	// RetiredSequence is the highest sequence index of any clip removed from
	// the job. Indices up to it are never handed out again.
	RetiredSequence int `json:"retired_sequence,omitempty"`
}

// Validate checks structural consistency of a loaded manifest.
func (m *Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if err := m.Plan.Validate(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	seen := make(map[string]bool, len(m.Sources))
	for _, s := range m.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Path] {
			return fmt.Errorf("duplicate source %s", s.Path)
		}
		seen[s.Path] = true
	}

	seq := make(map[int]bool, len(m.Clips))
	for _, c := range m.Clips {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("clip %d: %w", c.SequenceIndex, err)
		}
		if seq[c.SequenceIndex] {
			return fmt.Errorf("duplicate sequence index %d", c.SequenceIndex)
		}
		seq[c.SequenceIndex] = true
	}

	return nil
}

// Source returns the source record with the given path, or nil.
func (m *Manifest) Source(path string) *SourceRecord {
	for _, s := range m.Sources {
		if s.Path == path {
			return s
		}
	}
	return nil
}

// SourcesByStatus returns the sources in the given status, in path order.
func (m *Manifest) SourcesByStatus(status SourceStatus) []*SourceRecord {
	var out []*SourceRecord
	for _, s := range m.Sources {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// OrderedClips returns the clips sorted by SequenceIndex ascending.
func (m *Manifest) OrderedClips() []*ClipRecord {
	out := make([]*ClipRecord, len(m.Clips))
	copy(out, m.Clips)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out
}

// ClipsByStatus returns clips in the given status, in sequence order.
func (m *Manifest) ClipsByStatus(status ClipStatus) []*ClipRecord {
	var out []*ClipRecord
	for _, c := range m.OrderedClips() {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// NextSequenceIndex returns the index the planner must hand out next.
func (m *Manifest) NextSequenceIndex() int {
	next := m.RetiredSequence + 1
	for _, c := range m.Clips {
		if c.SequenceIndex >= next {
			next = c.SequenceIndex + 1
		}
	}
	return next
}

// PlannedSeconds returns the summed length of clips counting toward the target.
func (m *Manifest) PlannedSeconds() float64 {
	total := 0.0
	for _, c := range m.Clips {
		if c.CountsTowardTarget() {
			total += c.LengthSeconds
		}
	}
	return total
}

// RetireClips removes the clips for which drop returns true and returns how
// many were removed. Their sequence indices are not reused.
func (m *Manifest) RetireClips(drop func(*ClipRecord) bool) int {
	kept := m.Clips[:0]
	removed := 0
	for _, c := range m.Clips {
		if !drop(c) {
			kept = append(kept, c)
			continue
		}
		removed++
		if c.SequenceIndex > m.RetiredSequence {
			m.RetiredSequence = c.SequenceIndex
		}
	}
	clear(m.Clips[len(kept):])
	m.Clips = kept
	return removed
}

// AllClipsTerminal reports whether every clip is done or failed.
func (m *Manifest) AllClipsTerminal() bool {
	for _, c := range m.Clips {
		if !c.Terminal() {
			return false
		}
	}
	return len(m.Clips) > 0
}

// AllClipsDone reports whether every clip is done.
func (m *Manifest) AllClipsDone() bool {
	for _, c := range m.Clips {
		if c.Status != ClipDone {
			return false
		}
	}
	return len(m.Clips) > 0
}

// EpochSpan returns the earliest source start and the latest source end,
// as Unix seconds, over every source with a known duration. A probed source
// that later vanished still counts, so the span is stable across runs.
func (m *Manifest) EpochSpan() (start, end int64, ok bool) {
	for _, s := range m.Sources {
		if s.DurationSeconds <= 0 {
			continue
		}
		srcEnd := s.BaseEpoch + int64(math.Ceil(s.DurationSeconds))
		if !ok || s.BaseEpoch < start {
			start = s.BaseEpoch
		}
		if !ok || srcEnd > end {
			end = srcEnd
		}
		ok = true
	}
	return start, end, ok
}
