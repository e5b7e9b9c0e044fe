// Package ffprobe extracts duration and stream layout from media files using
// the ffprobe command-line tool.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"autoedit/command"
)

// ErrNoDuration is returned when ffprobe reports no usable positive duration.
var ErrNoDuration = errors.New("no usable duration")

// Stream represents a media stream (audio, video, subtitle, etc.)
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// ProbeResult holds the metadata ffprobe printed for one file.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Info is what the pipeline keeps from a probe.
type Info struct {
	DurationSeconds float64
	HasAudio        bool
}

// GetDuration returns the duration of the media file in seconds.
//
// The container duration wins; when it is absent the longest video stream is
// used. Zero and negative values are errors.
func (pr *ProbeResult) GetDuration() (float64, error) {
	if pr.Format.Duration != "" {
		duration, err := strconv.ParseFloat(pr.Format.Duration, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse duration '%s': %w", pr.Format.Duration, err)
		}
		if duration <= 0 {
			return 0, fmt.Errorf("%w: %s", ErrNoDuration, pr.Format.Duration)
		}
		return duration, nil
	}

	longest := 0.0
	for _, s := range pr.GetVideoStreams() {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > longest {
			longest = d
		}
	}
	if longest <= 0 {
		return 0, fmt.Errorf("%w: duration not available in format metadata", ErrNoDuration)
	}
	return longest, nil
}

// GetVideoStreams returns all video streams from the media file.
func (pr *ProbeResult) GetVideoStreams() []Stream {
	return pr.streamsOfType("video")
}

// GetAudioStreams returns all audio streams from the media file.
func (pr *ProbeResult) GetAudioStreams() []Stream {
	return pr.streamsOfType("audio")
}

func (pr *ProbeResult) streamsOfType(codecType string) []Stream {
	var out []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == codecType {
			out = append(out, stream)
		}
	}
	return out
}

// Parse decodes ffprobe JSON output into a ProbeResult.
func Parse(output []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}

// ProbeCommand is the ffprobe invocation for a single file.
type ProbeCommand struct {
	binary     string
	sourcePath string
}

// NewProbeCommand creates a probe command for sourcePath.
func NewProbeCommand(binary, sourcePath string) *ProbeCommand {
	if binary == "" {
		binary = "ffprobe"
	}
	return &ProbeCommand{binary: binary, sourcePath: sourcePath}
}

func (c *ProbeCommand) Binary() string { return c.binary }

// BuildArgs returns the ffprobe arguments.
//
// -v error keeps real diagnostics on stderr for failure reports.
func (c *ProbeCommand) BuildArgs() []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		c.sourcePath,
	}
}

func (c *ProbeCommand) DryRun() (string, error) {
	return command.Quote(c.binary, c.BuildArgs()), nil
}

func (c *ProbeCommand) GetTaskType() command.TaskType { return command.TaskTypeProbe }
func (c *ProbeCommand) GetInputPath() string          { return c.sourcePath }
func (c *ProbeCommand) GetOutputPath() string         { return "" }

// Executor runs a command and returns its stdout.
type Executor interface {
	Run(ctx context.Context, cmd command.Command, timeout time.Duration) ([]byte, error)
}

// Prober measures sources with ffprobe.
type Prober struct {
	exec    Executor
	binary  string
	timeout time.Duration
}

// NewProber creates a Prober. A zero timeout means no per-probe limit.
func NewProber(exec Executor, binary string, timeout time.Duration) *Prober {
	return &Prober{exec: exec, binary: binary, timeout: timeout}
}

// Probe analyzes a media file and returns its duration and audio presence.
//
// Example:
//
//	info, err := prober.Probe(ctx, "/videos/2024-06-01 12-00-00.mp4")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Duration: %.2f seconds\n", info.DurationSeconds)
func (p *Prober) Probe(ctx context.Context, sourcePath string) (Info, error) {
	if sourcePath == "" {
		return Info{}, fmt.Errorf("source path cannot be empty")
	}

	output, err := p.exec.Run(ctx, NewProbeCommand(p.binary, sourcePath), p.timeout)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	result, err := Parse(output)
	if err != nil {
		return Info{}, err
	}
	duration, err := result.GetDuration()
	if err != nil {
		return Info{}, err
	}

	return Info{
		DurationSeconds: duration,
		HasAudio:        len(result.GetAudioStreams()) > 0,
	}, nil
}
