package config_test

import (
	"log/slog"
	"testing"
	"time"

	"feedimport/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := config.ParseConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.sqlite", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.EnrichTimeout)
	assert.Equal(t, 4, cfg.SourceWorkers)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.SyncSpec)
}

func TestParseConfigFromEnv(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/x.sqlite")
	t.Setenv("SYNC_SPEC", "*/15 * * * *")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("SOURCE_WORKERS", "9")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RUN_ONCE", "true")

	cfg, err := config.ParseConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.sqlite", cfg.DBPath)
	assert.Equal(t, "*/15 * * * *", cfg.SyncSpec)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 9, cfg.SourceWorkers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.RunOnce)
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SOURCE_WORKERS", "many")

	_, err := config.ParseConfig()
	require.Error(t, err)
}
