// Package command provides the Command interface implemented by every external
// tool invocation (probe, clip encode, merge) and the Runner that executes them.
//
// Builders only construct argument lists; the Runner owns process lifetime,
// timeouts, diagnostics capture and the --debug-cmds echo, so every external
// call in a job behaves the same way on failure.
package command

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// TaskType represents the kind of external call.
type TaskType string

const (
	TaskTypeProbe  TaskType = "probe"  // Duration/stream probe of a source
	TaskTypeEncode TaskType = "encode" // Per-clip encode with overlay
	TaskTypeMerge  TaskType = "merge"  // Final assembly of encoded clips
)

// Command represents an external command that can be built, executed, or previewed.
//
// Example usage:
//
//	cmd := video.NewClipBuilder(req, "clip001.mkv.part")
//	line, _ := cmd.DryRun()
//	out, err := runner.Run(ctx, cmd, 10*time.Minute)
type Command interface {
	// Binary returns the executable name, e.g. "ffmpeg".
	Binary() string

	// BuildArgs constructs and returns the command arguments as a slice.
	// The returned slice is suitable for exec.Command(Binary(), args...).
	BuildArgs() []string

	// DryRun returns the command as a shell-quoted string without executing it.
	DryRun() (string, error)

	// GetTaskType returns the type of task.
	GetTaskType() TaskType

	// GetInputPath returns the primary input file path for this command.
	GetInputPath() string

	// GetOutputPath returns the output file path, or "" for read-only commands.
	GetOutputPath() string
}

// Quote renders a binary and its arguments as a single shell-safe line.
func Quote(binary string, args []string) string {
	return shellquote.Join(append([]string{binary}, args...)...)
}

// LastLines returns at most n trailing non-empty lines of s.
func LastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append(kept, strings.TrimSpace(lines[i]))
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}
