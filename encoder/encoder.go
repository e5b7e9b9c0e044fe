// Package encoder turns planned clips into encoded clip files.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"autoedit/command"
	"autoedit/command/video"
	"autoedit/ffmpeg"
	"autoedit/internal/logging"
	"autoedit/models"
)

var (
	// ErrEncode wraps a single clip's encode failure.
	ErrEncode = errors.New("encode failed")
	// ErrEmptyOutput is returned when the encoder exited cleanly but wrote nothing.
	ErrEmptyOutput = errors.New("encoder produced no output")
)

// WorkDirName is the directory under the autoedit dir holding clip files.
const WorkDirName = ".autoedit_work"

// PartSuffix marks files still being written.
const PartSuffix = ".part"

// ClipPath returns the encoded clip path for a sequence index.
func ClipPath(autoeditDir string, seq int) string {
	return filepath.Join(autoeditDir, WorkDirName, fmt.Sprintf("clip%03d.mkv", seq))
}

// Request is everything needed to encode one clip.
type Request struct {
	Clip       models.ClipRecord
	SourcePath string // absolute path of the clip's source
	HasAudio   bool
	OutputPath string
	Params     models.EncodeParams
}

// Encoder encodes one clip and returns the path of the finished file.
type Encoder interface {
	Encode(ctx context.Context, req Request) (string, error)
}

// Executor runs a command and returns its stdout.
type Executor interface {
	Run(ctx context.Context, cmd command.Command, timeout time.Duration) ([]byte, error)
}

// FFmpeg encodes clips with ffmpeg, writing to a .part file that is renamed
// into place only after the encoder succeeded and produced a non-empty file.
type FFmpeg struct {
	exec     Executor
	binary   string
	timeout  time.Duration
	progress *ffmpeg.ProgressParser
	logger   zerolog.Logger
}

// NewFFmpeg creates an FFmpeg encoder. A zero timeout means no limit.
func NewFFmpeg(exec Executor, binary string, timeout time.Duration, logger zerolog.Logger) *FFmpeg {
	return &FFmpeg{
		exec:     exec,
		binary:   binary,
		timeout:  timeout,
		progress: ffmpeg.NewProgressParser(),
		logger:   logging.WithComponent(logger, "ffmpeg"),
	}
}

// Builder returns the clip command for req, writing to outputPath.
func Builder(req Request, outputPath string) *video.ClipBuilder {
	p := req.Params
	return video.NewClipBuilder(video.ClipRequest{
		SequenceIndex: req.Clip.SequenceIndex,
		SourcePath:    req.SourcePath,
		SourceName:    req.Clip.SourcePath,
		StartSeconds:  req.Clip.StartSeconds,
		LengthSeconds: req.Clip.LengthSeconds,
		Epoch:         req.Clip.Epoch,
		HasAudio:      req.HasAudio,
	}, outputPath).
		SetSVT(p.SVTPreset, p.SVTCRF, p.SVTLP).
		SetOpusBitrate(p.OpusBitrate).
		SetTruePeak(p.TruePeak).
		SetFontFile(p.FontFile)
}

// Encode runs ffmpeg for one clip.
func (f *FFmpeg) Encode(ctx context.Context, req Request) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("create clip directory: %w", err)
	}

	part := req.OutputPath + PartSuffix
	_ = os.Remove(part)

	cmd := Builder(req, part).SetBinary(f.binary)
	stdout, err := f.exec.Run(ctx, cmd, f.timeout)
	if err != nil {
		_ = os.Remove(part)
		return "", err
	}
	f.logStats(req, stdout)

	info, err := os.Stat(part)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(part)
		return "", fmt.Errorf("%w: %s", ErrEmptyOutput, part)
	}
	if err := os.Rename(part, req.OutputPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", part, err)
	}
	return req.OutputPath, nil
}

func (f *FFmpeg) logStats(req Request, stdout []byte) {
	p, err := f.progress.Parse(bytes.NewReader(stdout))
	if err != nil {
		f.logger.Debug().Int("clip", req.Clip.SequenceIndex).Err(err).Msg("no encode statistics")
		return
	}
	f.logger.Debug().
		Int("clip", req.Clip.SequenceIndex).
		Int64("frames", p.Frame).
		Float64("fps", p.FPS).
		Float64("speed", p.Speed).
		Float64("seconds", p.OutTimeSeconds).
		Int64("bytes", p.SizeBytes).
		Msg("encode statistics")
}
