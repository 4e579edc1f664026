package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("COMPLETION_ENDPOINT", "")
	path := writeConfig(t, `
server:
  port: 9000
providers:
  completion:
    endpoint: https://api.example.com/v1/chat/completions
    api_key: sk-test
budget:
  default_daily_usd: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 25.0, cfg.Budget.DefaultDailyUSD)
	// Untouched values keep their defaults.
	assert.Equal(t, DefaultPersonalTTL, cfg.Cache.PersonalTTL)
	assert.Equal(t, DefaultDailyTTL, cfg.Cache.DailyTTL)
	assert.Equal(t, DefaultMinCacheableLength, cfg.Cache.MinResponseLength)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
providers:
  completion:
    endpoint: https://file.example.com/chat
`)
	t.Setenv("COMPLETION_ENDPOINT", "https://env.example.com/chat")
	t.Setenv("PORT", "7777")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/chat", cfg.Providers.Completion.Endpoint)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Providers.Completion.Endpoint = "https://api.example.com/chat"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Budget.DefaultDailyUSD = -1
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Providers.Completion.Endpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Cache.DailyTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.History.RetentionDays = 0
	assert.Error(t, cfg.Validate())
}
