package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoedit/models"
)

func sampleManifest() *models.Manifest {
	return &models.Manifest{
		Plan: models.PlanParams{TargetSeconds: 30, MinClipSeconds: 5, MaxClipSeconds: 10},
		Sources: []*models.SourceRecord{
			{Path: "a.mp4", Status: models.SourceProbed, DurationSeconds: 60},
			{Path: "b.mp4", Status: models.SourceFailed, Error: "moov atom not found"},
		},
		Clips: []*models.ClipRecord{
			{SequenceIndex: 1, SourcePath: "a.mp4", LengthSeconds: 8, Status: models.ClipDone, OutputPath: "/w/clip001.mkv"},
			{SequenceIndex: 2, SourcePath: "a.mp4", StartSeconds: 8, LengthSeconds: 7.5, Status: models.ClipFailed, Error: "exit status 1"},
		},
	}
}

func TestFromManifest(t *testing.T) {
	s := FromManifest(sampleManifest(), "", false)

	assert.Equal(t, 2, s.Sources)
	assert.Equal(t, 1, s.Probed)
	assert.Equal(t, 2, s.Clips)
	assert.Equal(t, 1, s.ClipsDone)
	assert.InDelta(t, 8.0, s.TotalSeconds, 1e-9)
	assert.Equal(t, []string{
		"source b.mp4: moov atom not found",
		"clip 002: exit status 1",
	}, s.Failures)
}

func TestRender_Complete(t *testing.T) {
	m := sampleManifest()
	m.Clips = m.Clips[:1]
	m.Sources = m.Sources[:1]

	out := Render(FromManifest(m, "/out/20240601T120000--20240601T121000 auto-edit.mkv", false))
	assert.Contains(t, out, "auto-edit complete")
	assert.Contains(t, out, "20240601T120000--20240601T121000 auto-edit.mkv")
	assert.NotContains(t, out, "/out/")
	assert.Contains(t, out, "1 done of 1")
	assert.NotContains(t, out, "failure")
}

func TestRender_ResumedAndFailures(t *testing.T) {
	resumed := Render(Summary{Output: "/out/reel.mkv", Resumed: true})
	assert.Contains(t, resumed, "already complete")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromManifest(sampleManifest(), "", false)))
	assert.Contains(t, buf.String(), "auto-edit incomplete")
	assert.Contains(t, buf.String(), "2 failure(s)")
	assert.Contains(t, buf.String(), "clip 002: exit status 1")
}

func TestRenderPlan(t *testing.T) {
	out := RenderPlan(sampleManifest())
	assert.Equal(t,
		"#001  done      00:00:00.00  +  8.00s  a.mp4\n"+
			"#002  failed    00:00:08.00  +  7.50s  a.mp4\n"+
			"2 clip(s), 00:00:15.50 of 00:00:30.00\n",
		out)
}
