package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoedit/concatenator"
	"autoedit/config"
	"autoedit/orchestrator"
	"autoedit/probecache"
)

func TestCheckTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tools = config.ToolsConfig{FFprobe: "sh", FFmpeg: "sh", MKVMerge: "autoedit-missing-tool"}

	err := checkTools(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autoedit-missing-tool")

	// A dry run only needs the prober.
	cfg.DryRun = true
	assert.NoError(t, checkTools(cfg))
}

func TestNewMerger(t *testing.T) {
	cfg := config.DefaultConfig()
	runner := newRunner(cfg, zerolog.Nop())

	assert.IsType(t, &concatenator.MKVMerge{}, newMerger(cfg, runner, zerolog.Nop()))

	cfg.Execution.Merger = config.MergerFFmpeg
	assert.IsType(t, &concatenator.FFmpegConcat{}, newMerger(cfg, runner, zerolog.Nop()))
}

func TestNewRunner_SilencesEncoderUnlessVerbose(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, []string{"SVT_LOG=2"}, newRunner(cfg, zerolog.Nop()).Env)

	cfg.Verbose = true
	cfg.DebugCmds = true
	r := newRunner(cfg, zerolog.Nop())
	assert.Empty(t, r.Env)
	assert.True(t, r.DebugCmds)
}

func TestStageTracker_NamesFailingStage(t *testing.T) {
	var logs bytes.Buffer
	tr := &stageTracker{logger: zerolog.New(&logs)}

	assert.NoError(t, tr.wrap(nil))
	assert.Equal(t, context.Canceled, tr.wrap(context.Canceled))

	tr.enter(orchestrator.StageDiscover)
	tr.enter(orchestrator.StageProbe)
	tr.enter(orchestrator.StageReport)

	err := tr.wrap(fmt.Errorf("%w: nothing usable", probecache.ErrNoProbedSources))
	require.Error(t, err)
	assert.True(t, errors.Is(err, probecache.ErrNoProbedSources))
	assert.Equal(t, "probe: no probed sources: nothing usable", err.Error())
	assert.Contains(t, logs.String(), `"stage":"report"`)
}
