package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{JSON: true, Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	probeLogger := WithComponent(logger, "probe")
	probeLogger.Info().Str("source", "a.mp4").Msg("probed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "probe", entry["component"])
	assert.Equal(t, "a.mp4", entry["source"])
	assert.Equal(t, "info", entry["level"])
}

func TestInit_DebugOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{JSON: true, Out: &buf})
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	logger = Init(Options{Verbose: true, JSON: true, Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	logger.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestInit_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{Out: &buf})
	logger.Info().Msg("merging clips")

	assert.Contains(t, buf.String(), "merging clips")
	assert.NotContains(t, buf.String(), "\x1b[", "non-terminal output must not be coloured")
}

func TestIsTerminal_RegularFileAndBuffer(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, isTerminal(f))
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
