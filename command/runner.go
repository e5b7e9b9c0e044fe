package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"autoedit/internal/logging"
)

// ErrTimeout marks an external call that was killed because its stage timeout expired.
var ErrTimeout = errors.New("timed out")

const diagnosticLines = 5

// ExecError describes a failed external call with the tool's own diagnostics.
type ExecError struct {
	Line     string // Quoted command line
	Stderr   string // Captured stderr (full)
	TimedOut bool
	Err      error
}

func (e *ExecError) Error() string {
	cause := e.Err.Error()
	if e.TimedOut {
		cause = ErrTimeout.Error()
	}
	if tail := LastLines(e.Stderr, diagnosticLines); tail != "" {
		return fmt.Sprintf("%s: %s", cause, tail)
	}
	return cause
}

func (e *ExecError) Unwrap() []error {
	if e.TimedOut {
		return []error{ErrTimeout, e.Err}
	}
	return []error{e.Err}
}

// Runner executes Commands as blocking child processes.
type Runner struct {
	logger zerolog.Logger

	// DebugCmds echoes every command line before it runs.
	DebugCmds bool
	// Verbose tees child stderr to the terminal while still capturing it.
	Verbose bool
	// Env is appended to the inherited environment of every child.
	Env []string
	// Stderr receives the tee'd output in verbose mode; defaults to os.Stderr.
	Stderr io.Writer
}

// NewRunner creates a Runner that logs through logger.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logging.WithComponent(logger, "exec"),
		Stderr: os.Stderr,
	}
}

// Run executes cmd and returns its stdout. A positive timeout bounds the call;
// on expiry the process is killed and the error wraps ErrTimeout.
func (r *Runner) Run(ctx context.Context, cmd Command, timeout time.Duration) ([]byte, error) {
	line, err := cmd.DryRun()
	if err != nil {
		return nil, fmt.Errorf("invalid %s command: %w", cmd.GetTaskType(), err)
	}
	args := cmd.BuildArgs()

	if r.DebugCmds {
		r.logger.Info().Str("task", string(cmd.GetTaskType())).Msg("CMD: " + line)
	}

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Binary(), args...)
	c.WaitDelay = 5 * time.Second
	if len(r.Env) > 0 {
		c.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if r.Verbose && r.Stderr != nil {
		c.Stderr = io.MultiWriter(&stderr, r.Stderr)
	} else {
		c.Stderr = &stderr
	}

	start := time.Now()
	err = c.Run()
	elapsed := time.Since(start)

	if err != nil {
		execErr := &ExecError{Line: line, Stderr: stderr.String(), Err: err}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			execErr.TimedOut = true
		}
		r.logger.Debug().
			Str("task", string(cmd.GetTaskType())).
			Str("input", cmd.GetInputPath()).
			Dur("elapsed", elapsed).
			Err(execErr).
			Msg("command failed")
		return nil, execErr
	}

	r.logger.Debug().
		Str("task", string(cmd.GetTaskType())).
		Str("input", cmd.GetInputPath()).
		Dur("elapsed", elapsed).
		Msg("command finished")
	return stdout.Bytes(), nil
}
