package logging

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/config"
)

func TestLevelFrom(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFrom("debug"))
	assert.Equal(t, slog.LevelWarn, levelFrom("warn"))
	assert.Equal(t, slog.LevelError, levelFrom("error"))
	assert.Equal(t, slog.LevelInfo, levelFrom("info"))
	assert.Equal(t, slog.LevelInfo, levelFrom(""))
}

func TestSetupVerboseOverridesLevel(t *testing.T) {
	closeFn := Setup(config.LoggingConfig{Level: "error", Format: "text"}, true)
	defer closeFn() //nolint:errcheck

	assert.True(t, slog.Default().Enabled(nil, slog.LevelDebug))
}

func TestSetupFileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo2stl.log")
	closeFn := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1}, false)

	slog.Info("hello from test")
	require.NoError(t, closeFn())

	assert.FileExists(t, path)
}
