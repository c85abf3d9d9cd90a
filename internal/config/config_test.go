package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "redis:\n  url: \"\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 30*time.Minute, cfg.Session.DefaultTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "redis:\n  url: redis://localhost:6379\n")

	t.Setenv("REDIS_URL", "redis://cache.internal:6380")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_DEFAULT_TTL_SECONDS", "60")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://cache.internal:6380", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.Session.DefaultTTL)
}

func TestLoadConfig_RejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: chatty\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path.yaml")
	assert.Error(t, err)
}
