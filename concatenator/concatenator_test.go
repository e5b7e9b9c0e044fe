package concatenator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoedit/command"
)

// recordingExecutor captures commands and optionally writes their output.
type recordingExecutor struct {
	cmds     []command.Command
	lists    []string
	writeOut bool
	err      error
}

func (r *recordingExecutor) Run(_ context.Context, cmd command.Command, _ time.Duration) ([]byte, error) {
	r.cmds = append(r.cmds, cmd)
	if c, ok := cmd.(*FFmpegConcatCommand); ok {
		data, _ := os.ReadFile(c.GetInputPath())
		r.lists = append(r.lists, string(data))
	}
	if r.writeOut {
		if err := os.WriteFile(cmd.GetOutputPath(), []byte("merged"), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, r.err
}

func writeClips(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("clip data"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestValidateInputs(t *testing.T) {
	tmpDir := t.TempDir()
	present := writeClips(t, tmpDir, "clip001.mkv")[0]
	empty := filepath.Join(tmpDir, "clip002.mkv")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		paths       []string
		expectError bool
		contains    string
	}{
		{name: "no clips", paths: nil, expectError: true, contains: "no clips"},
		{name: "all present", paths: []string{present}},
		{name: "empty clip", paths: []string{present, empty}, expectError: true, contains: "clip002.mkv"},
		{name: "missing clip", paths: []string{filepath.Join(tmpDir, "clip003.mkv")}, expectError: true, contains: "clip003.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInputs(tt.paths)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.contains) {
					t.Errorf("Expected error containing %q, got %v", tt.contains, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestMKVMergeCommand_BuildArgs(t *testing.T) {
	cmd := NewMKVMergeCommand("", []string{"/w/clip001.mkv", "/w/clip002.mkv", "/w/clip003.mkv"}, "/out/reel.mkv.part")

	want := "--no-track-tags --no-global-tags --no-chapters --quiet --append-mode track -o /out/reel.mkv.part /w/clip001.mkv +/w/clip002.mkv +/w/clip003.mkv"
	if got := strings.Join(cmd.BuildArgs(), " "); got != want {
		t.Errorf("Unexpected args:\n got: %s\nwant: %s", got, want)
	}
	if cmd.Binary() != "mkvmerge" {
		t.Errorf("Expected mkvmerge binary, got %s", cmd.Binary())
	}
	if cmd.GetTaskType() != command.TaskTypeMerge {
		t.Errorf("Expected merge task, got %s", cmd.GetTaskType())
	}
}

func TestMKVMerge_Merge(t *testing.T) {
	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv", "clip002.mkv")
	out := filepath.Join(tmpDir, "reel.mkv.part")

	rec := &recordingExecutor{writeOut: true}
	if err := NewMKVMerge(rec, "", 0, zerolog.Nop()).Merge(context.Background(), paths, out); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(rec.cmds) != 1 {
		t.Fatalf("Expected one command, got %d", len(rec.cmds))
	}
}

func TestMKVMerge_RefusesMissingClips(t *testing.T) {
	tmpDir := t.TempDir()
	rec := &recordingExecutor{writeOut: true}

	err := NewMKVMerge(rec, "", 0, zerolog.Nop()).Merge(context.Background(),
		[]string{filepath.Join(tmpDir, "clip001.mkv")}, filepath.Join(tmpDir, "reel.mkv"))
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}
	if len(rec.cmds) != 0 {
		t.Error("mkvmerge must not run with missing clips")
	}
}

func TestMKVMerge_Failure(t *testing.T) {
	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv")

	rec := &recordingExecutor{err: errors.New("exit status 2: Error: no free space")}
	err := NewMKVMerge(rec, "", 0, zerolog.Nop()).Merge(context.Background(), paths, filepath.Join(tmpDir, "reel.mkv"))
	if err == nil || !strings.Contains(err.Error(), "no free space") {
		t.Errorf("Expected mkvmerge diagnostic, got %v", err)
	}
}

func TestMKVMerge_WarningExitAccepted(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	warnErr := exec.Command("sh", "-c", "exit 1").Run()
	if warnErr == nil {
		t.Fatal("Expected exit error from sh")
	}

	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv")
	rec := &recordingExecutor{writeOut: true, err: &command.ExecError{Err: warnErr}}

	if err := NewMKVMerge(rec, "", 0, zerolog.Nop()).Merge(context.Background(), paths, filepath.Join(tmpDir, "reel.mkv")); err != nil {
		t.Errorf("Expected warning exit to be accepted, got %v", err)
	}
}

func TestMKVMerge_EmptyOutputFails(t *testing.T) {
	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv")

	err := NewMKVMerge(&recordingExecutor{}, "", 0, zerolog.Nop()).Merge(context.Background(), paths, filepath.Join(tmpDir, "reel.mkv"))
	if err == nil || !strings.Contains(err.Error(), "output file not created") {
		t.Errorf("Expected missing output error, got %v", err)
	}
}

func TestCreateConcatFile(t *testing.T) {
	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv", "it's.mkv")

	concatFile, err := createConcatFile(tmpDir, paths)
	if err != nil {
		t.Fatalf("createConcatFile failed: %v", err)
	}
	defer os.Remove(concatFile)

	content, err := os.ReadFile(concatFile)
	if err != nil {
		t.Fatalf("Failed to read concat file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "file '"+paths[0]+"'" {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], `it'\''s.mkv`) {
		t.Errorf("Expected escaped quote, got %q", lines[1])
	}
}

func TestFFmpegConcat_Merge(t *testing.T) {
	tmpDir := t.TempDir()
	paths := writeClips(t, tmpDir, "clip001.mkv", "clip002.mkv")
	out := filepath.Join(tmpDir, "reel.mkv.part")

	rec := &recordingExecutor{writeOut: true}
	if err := NewFFmpegConcat(rec, "", 0).Merge(context.Background(), paths, out); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	args := strings.Join(rec.cmds[0].BuildArgs(), " ")
	if !strings.Contains(args, "-f concat -safe 0") || !strings.Contains(args, "-c copy -f matroska -y "+out) {
		t.Errorf("Unexpected args: %s", args)
	}
	if !strings.Contains(rec.lists[0], "clip001.mkv'\nfile '") {
		t.Errorf("Expected ordered list, got %q", rec.lists[0])
	}

	// The list file is cleaned up after the merge.
	matches, _ := filepath.Glob(filepath.Join(tmpDir, "concat-*.txt"))
	if len(matches) != 0 {
		t.Errorf("Expected concat list to be removed, found %v", matches)
	}
}
