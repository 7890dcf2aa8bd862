package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	SetLevel("warn")
	Infof("[AdBlock] hidden %d", 1)
	Warnf("[AdBlock] shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
}

func TestDebugEnvOverridesLevel(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel("info")
	})

	SetLevel("error")
	assert.Equal(t, "debug", Level())

	Debugf("verbose")
	assert.Contains(t, buf.String(), "verbose")
}

func TestNamedLogger(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	SetLevel("info")

	Named("detector").Infow("state changed", "state", "active")
	assert.Contains(t, buf.String(), "detector")
	assert.Contains(t, buf.String(), "state changed")
}

func TestInitWritesJSONFile(t *testing.T) {
	t.Setenv(DebugEnv, "")
	path := filepath.Join(t.TempDir(), "adshield.log")
	Init(Options{Level: "info", File: path, MaxSizeMB: 1})
	t.Cleanup(func() { Init(Options{Level: "info"}) })

	Infof("[AdBlock] file entry")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[AdBlock] file entry"`)
}
