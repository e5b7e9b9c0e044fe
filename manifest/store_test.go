package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoedit/models"
)

func testManifest() *models.Manifest {
	m := New("/src", models.PlanParams{TargetSeconds: 60, MinClipSeconds: 10, MaxClipSeconds: 30},
		models.EncodeParams{SVTPreset: 5, SVTCRF: 32, SVTLP: 5, OpusBitrate: "128k"}, time.Unix(1700000000, 0))
	m.Sources = append(m.Sources, &models.SourceRecord{Path: "a.mp4", Status: models.SourceProbed, DurationSeconds: 40})
	m.Clips = append(m.Clips, &models.ClipRecord{SequenceIndex: 1, SourcePath: "a.mp4", LengthSeconds: 12, Status: models.ClipPlanned})
	return m
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	m := testManifest()
	require.NoError(t, s.Save(m))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, m.JobID, got.JobID)
	assert.Equal(t, m.Plan, got.Plan)
	require.Len(t, got.Clips, 1)
	assert.Equal(t, 1, got.Clips[0].SequenceIndex)
	assert.False(t, got.Updated.IsZero())
}

func TestNew_AssignsSeed(t *testing.T) {
	m := New("/src", models.PlanParams{TargetSeconds: 1, MinClipSeconds: 1, MaxClipSeconds: 1}, models.EncodeParams{}, time.Now())
	assert.NotZero(t, m.Plan.Seed)
	assert.NotEmpty(t, m.JobID)

	fixed := New("/src", models.PlanParams{TargetSeconds: 1, MinClipSeconds: 1, MaxClipSeconds: 1, Seed: 42}, models.EncodeParams{}, time.Now())
	assert.Equal(t, uint64(42), fixed.Plan.Seed)
}

func TestStore_InterruptedWriteKeepsPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	m := testManifest()
	require.NoError(t, s.Save(m))

	// A crash after the temp file was partly written but before the rename.
	full, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	partial := filepath.Join(dir, FileName+".tmp-123456")
	require.NoError(t, os.WriteFile(partial, full[:len(full)/2], 0o644))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, m.JobID, got.JobID)

	_, err = os.Stat(partial)
	assert.True(t, os.IsNotExist(err), "stale temp file should be removed on load")
}

func TestStore_InvalidManifestIsNotWritten(t *testing.T) {
	s := NewStore(t.TempDir())
	m := testManifest()
	require.NoError(t, s.Save(m))

	m.Clips = append(m.Clips, &models.ClipRecord{SequenceIndex: 1, SourcePath: "a.mp4", LengthSeconds: 5, Status: models.ClipPlanned})
	require.Error(t, s.Save(m))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Clips, 1)
}

func TestStore_TruncatedManifestIsCorrupt(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version": 1, "sour`), 0o644))

	_, err := s.Load()
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_CommitAppliesMutation(t *testing.T) {
	s := NewStore(t.TempDir())
	m := testManifest()
	require.NoError(t, s.Save(m))

	require.NoError(t, s.Commit(m, func(m *models.Manifest) {
		m.Clips[0].Status = models.ClipFailed
		m.Clips[0].Error = "boom"
	}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.ClipFailed, got.Clips[0].Status)
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.json")
	require.NoError(t, WriteAtomic(target, []byte("one")))
	require.NoError(t, WriteAtomic(target, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
