package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/internal/config"
)

func TestLoadConfig_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("DAYBOOK_HOST")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"Default host must be 127.0.0.1 for security")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7272, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.StorageEngine)
	assert.Equal(t, 60, cfg.Timeline.GapThresholdMinutes)
	assert.Equal(t, 5*time.Second, cfg.Timeline.FetchTimeout)
	assert.Equal(t, 10, cfg.Session.DistillAfterTurns)
	assert.Equal(t, 5, cfg.Session.KeepVerbatimTurns)
	assert.Equal(t, "none", cfg.LLM.Provider)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DAYBOOK_STORAGE_ENGINE", "postgres")
	t.Setenv("DAYBOOK_POSTGRES_DSN", "postgres://localhost/daybook")
	t.Setenv("DAYBOOK_GAP_THRESHOLD_MINUTES", "30")
	t.Setenv("DAYBOOK_FETCH_TIMEOUT", "2s")
	t.Setenv("DAYBOOK_DEVICE_RATE_LIMIT", "1.5")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.StorageEngine)
	assert.Equal(t, "postgres://localhost/daybook", cfg.Storage.PostgresDSN)
	assert.Equal(t, 30, cfg.Timeline.GapThresholdMinutes)
	assert.Equal(t, 2*time.Second, cfg.Timeline.FetchTimeout)
	assert.Equal(t, 1.5, cfg.Sources.DeviceRateLimit)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DAYBOOK_PORT", "not-a-number")
	t.Setenv("DAYBOOK_FETCH_TIMEOUT", "soon")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7272, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeline.FetchTimeout)
}
