package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellCommand runs a shell snippet through /bin/sh.
type shellCommand struct {
	script  string
	invalid bool
}

func (s *shellCommand) Binary() string         { return "sh" }
func (s *shellCommand) BuildArgs() []string    { return []string{"-c", s.script} }
func (s *shellCommand) GetTaskType() TaskType  { return TaskTypeProbe }
func (s *shellCommand) GetInputPath() string   { return "input.mp4" }
func (s *shellCommand) GetOutputPath() string  { return "" }
func (s *shellCommand) DryRun() (string, error) {
	if s.invalid {
		return "", errors.New("script is not runnable")
	}
	return Quote(s.Binary(), s.BuildArgs()), nil
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestTaskTypeUniqueness(t *testing.T) {
	taskTypes := []TaskType{TaskTypeProbe, TaskTypeEncode, TaskTypeMerge}

	seen := make(map[TaskType]bool)
	for _, taskType := range taskTypes {
		if seen[taskType] {
			t.Errorf("Duplicate task type found: %s", taskType)
		}
		seen[taskType] = true
	}
}

func TestQuote(t *testing.T) {
	got := Quote("ffmpeg", []string{"-i", "my clip.mp4", "-vf", "drawtext=text='x'"})
	assert.Equal(t, `ffmpeg -i 'my clip.mp4' -vf drawtext=text=\'x\'`, got)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "b | c", LastLines("a\nb\n\nc\n", 2))
	assert.Equal(t, "", LastLines("", 3))
	assert.Equal(t, "only", LastLines("  only  \n", 3))
}

func TestRunner_CapturesStdout(t *testing.T) {
	requireShell(t)
	r := NewRunner(zerolog.Nop())

	out, err := r.Run(context.Background(), &shellCommand{script: "printf 42.5"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "42.5", string(out))
}

func TestRunner_ReportsStderrOnFailure(t *testing.T) {
	requireShell(t)
	r := NewRunner(zerolog.Nop())

	_, err := r.Run(context.Background(), &shellCommand{script: "echo 'Invalid data found' >&2; exit 3"}, 0)
	require.Error(t, err)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Contains(t, err.Error(), "exit status 3")
	assert.False(t, execErr.TimedOut)
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	requireShell(t)
	r := NewRunner(zerolog.Nop())

	start := time.Now()
	_, err := r.Run(context.Background(), &shellCommand{script: "exec sleep 10"}, 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunner_CancelledContext(t *testing.T) {
	requireShell(t)
	r := NewRunner(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, &shellCommand{script: "exit 0"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_DebugCmdsEchoesLine(t *testing.T) {
	requireShell(t)
	var logs bytes.Buffer
	r := NewRunner(zerolog.New(&logs))
	r.DebugCmds = true

	_, err := r.Run(context.Background(), &shellCommand{script: "exit 0"}, 0)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "CMD: sh -c 'exit 0'")
}

func TestRunner_RejectsInvalidCommand(t *testing.T) {
	requireShell(t)
	marker := filepath.Join(t.TempDir(), "ran")

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), &shellCommand{script: "touch " + Quote(marker, nil), invalid: true}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script is not runnable")
	assert.NoFileExists(t, marker)
}

func TestRunner_VerboseTeesStderr(t *testing.T) {
	requireShell(t)
	var tee bytes.Buffer
	r := NewRunner(zerolog.Nop())
	r.Verbose = true
	r.Stderr = &tee

	_, err := r.Run(context.Background(), &shellCommand{script: "echo progress >&2"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "progress\n", tee.String())
}

func TestRunner_PassesEnv(t *testing.T) {
	requireShell(t)
	r := NewRunner(zerolog.Nop())
	r.Env = []string{"SVT_LOG=2"}

	out, err := r.Run(context.Background(), &shellCommand{script: "printf \"$SVT_LOG\""}, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", string(out))
}
