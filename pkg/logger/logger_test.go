package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_LevelAndEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log, err := New(Options{Environment: "production", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	t.Setenv("LOG_LEVEL", "debug")
	log, err = New(Options{Environment: "production", Level: "warn"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "engine.log")
	log, err := New(Options{Environment: "production", Format: "json", FilePath: path})
	require.NoError(t, err)

	log.Info("document created", zap.String("doc_id", "doc-1"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "document created", entry["msg"])
	assert.Equal(t, "doc-1", entry["doc_id"])
	assert.Contains(t, entry, "timestamp")
}
