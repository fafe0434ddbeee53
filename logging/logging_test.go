package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"TreeMPI/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treempi.log")
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json", File: path}, false)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	logger.Info("dropped")
	logger.Warn("kept", zap.Int("rank", 3))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"rank":3`)
	assert.NotContains(t, string(data), "dropped")
}

func TestVerboseForcesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treempi.log")
	logger, err := New(config.LoggingConfig{Level: "error", File: path}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"}, false)
	assert.Error(t, err)
}
