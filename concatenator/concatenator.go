// Package concatenator merges encoded clips into a single Matroska file.
//
// Two mergers are provided: MKVMerge (append mode, the default) and
// FFmpegConcat (ffmpeg's concat demuxer). Both stream-copy; no clip is
// re-encoded.
package concatenator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoedit/command"
)

// Executor runs a command and returns its stdout.
type Executor interface {
	Run(ctx context.Context, cmd command.Command, timeout time.Duration) ([]byte, error)
}

// validateInputs checks that every clip exists and is non-empty.
func validateInputs(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	var missing []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing or empty clips: %s", strings.Join(missing, ", "))
	}
	return nil
}

// verifyOutput checks that the merger wrote something.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file %s is empty", path)
	}
	return nil
}

// MKVMergeCommand appends clips track by track with mkvmerge.
type MKVMergeCommand struct {
	binary     string
	inputs     []string
	outputPath string
}

// NewMKVMergeCommand creates an append-mode mkvmerge command.
func NewMKVMergeCommand(binary string, inputs []string, outputPath string) *MKVMergeCommand {
	if binary == "" {
		binary = "mkvmerge"
	}
	return &MKVMergeCommand{binary: binary, inputs: inputs, outputPath: outputPath}
}

func (c *MKVMergeCommand) Binary() string { return c.binary }

// BuildArgs returns: tag/chapter suppression, append mode, output, first
// clip, then every further clip prefixed with '+'.
func (c *MKVMergeCommand) BuildArgs() []string {
	args := []string{
		"--no-track-tags",
		"--no-global-tags",
		"--no-chapters",
		"--quiet",
		"--append-mode", "track",
		"-o", c.outputPath,
	}
	for i, p := range c.inputs {
		if i == 0 {
			args = append(args, p)
			continue
		}
		args = append(args, "+"+p)
	}
	return args
}

func (c *MKVMergeCommand) DryRun() (string, error) {
	if len(c.inputs) == 0 {
		return "", fmt.Errorf("no clips to concatenate")
	}
	return command.Quote(c.binary, c.BuildArgs()), nil
}

func (c *MKVMergeCommand) GetTaskType() command.TaskType { return command.TaskTypeMerge }

func (c *MKVMergeCommand) GetInputPath() string {
	if len(c.inputs) == 0 {
		return ""
	}
	return c.inputs[0]
}

func (c *MKVMergeCommand) GetOutputPath() string { return c.outputPath }

// MKVMerge merges clips with mkvmerge.
type MKVMerge struct {
	exec    Executor
	binary  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMKVMerge creates an mkvmerge-based merger.
func NewMKVMerge(exec Executor, binary string, timeout time.Duration, logger zerolog.Logger) *MKVMerge {
	return &MKVMerge{exec: exec, binary: binary, timeout: timeout, logger: logger}
}

// Merge appends paths in order into outputPath.
//
// mkvmerge exits 1 when it only emitted warnings; the output is complete in
// that case and is accepted.
func (m *MKVMerge) Merge(ctx context.Context, paths []string, outputPath string) error {
	if err := validateInputs(paths); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := m.exec.Run(ctx, NewMKVMergeCommand(m.binary, paths, outputPath), m.timeout)
	if err != nil {
		if !isWarningExit(err) {
			return fmt.Errorf("mkvmerge failed: %w", err)
		}
		m.logger.Warn().Err(err).Msg("mkvmerge finished with warnings")
	}
	return verifyOutput(outputPath)
}

func isWarningExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 1
}

// FFmpegConcatCommand runs ffmpeg's concat demuxer over a list file.
type FFmpegConcatCommand struct {
	binary     string
	listPath   string
	outputPath string
}

// NewFFmpegConcatCommand creates a concat demuxer command reading listPath.
func NewFFmpegConcatCommand(binary, listPath, outputPath string) *FFmpegConcatCommand {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConcatCommand{binary: binary, listPath: listPath, outputPath: outputPath}
}

func (c *FFmpegConcatCommand) Binary() string { return c.binary }

func (c *FFmpegConcatCommand) BuildArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "concat",
		"-safe", "0",
		"-i", c.listPath,
		"-map", "0",
		"-c", "copy", // Copy without re-encoding
		"-f", "matroska",
		"-y", // Overwrite output file
		c.outputPath,
	}
}

func (c *FFmpegConcatCommand) DryRun() (string, error) {
	return command.Quote(c.binary, c.BuildArgs()), nil
}

func (c *FFmpegConcatCommand) GetTaskType() command.TaskType { return command.TaskTypeMerge }
func (c *FFmpegConcatCommand) GetInputPath() string          { return c.listPath }
func (c *FFmpegConcatCommand) GetOutputPath() string         { return c.outputPath }

// FFmpegConcat merges clips with ffmpeg's concat demuxer.
type FFmpegConcat struct {
	exec    Executor
	binary  string
	timeout time.Duration
}

// NewFFmpegConcat creates an ffmpeg-based merger.
func NewFFmpegConcat(exec Executor, binary string, timeout time.Duration) *FFmpegConcat {
	return &FFmpegConcat{exec: exec, binary: binary, timeout: timeout}
}

// Merge concatenates paths in order into outputPath.
func (f *FFmpegConcat) Merge(ctx context.Context, paths []string, outputPath string) error {
	if err := validateInputs(paths); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	listPath, err := createConcatFile(filepath.Dir(outputPath), paths)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(listPath)

	if _, err := f.exec.Run(ctx, NewFFmpegConcatCommand(f.binary, listPath, outputPath), f.timeout); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}
	return verifyOutput(outputPath)
}

// createConcatFile creates a text file listing all clip paths for ffmpeg concat demuxer
// Format: file '/path/to/clip001.mkv'
//
//	file '/path/to/clip002.mkv'
func createConcatFile(dir string, paths []string) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()

	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			_ = os.Remove(tmpFile.Name())
			return "", fmt.Errorf("failed to get absolute path for %s: %w", p, err)
		}

		// Escape single quotes in path (replace ' with '\'' for shell)
		escapedPath := strings.ReplaceAll(absPath, "'", `'\''`)

		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", escapedPath); err != nil {
			_ = os.Remove(tmpFile.Name())
			return "", fmt.Errorf("failed to write to concat file: %w", err)
		}
	}

	return tmpFile.Name(), nil
}
