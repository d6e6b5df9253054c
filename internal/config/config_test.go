package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/common"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

// chdirTemp moves into an empty directory so a stray ./.env is not picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 10*time.Second, cfg.HealthInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.ProbeTimeout)
	assert.Equal(t, 32, cfg.HealthConcurrency)
	assert.Equal(t, 24, cfg.MaxNameLength)
	assert.False(t, cfg.ClearLogsAfterDownload)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"lock", func(c *Config) { c.LockBackend = "etcd" }},
		{"publisher", func(c *Config) { c.PublisherBackend = "amqp" }},
		{"name length", func(c *Config) { c.MaxNameLength = 0 }},
		{"concurrency", func(c *Config) { c.HealthConcurrency = -1 }},
		{"timeout", func(c *Config) { c.ProbeTimeout = 0 }},
		{"redis lock ttl", func(c *Config) {
			c.LockBackend = "redis"
			c.SessionTimeout = 5 * time.Minute
			c.LockTTL = 30 * time.Second
		}},
		{"redis lock ttl equal", func(c *Config) {
			c.LockBackend = "redis"
			c.LockTTL = c.SessionTimeout
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.LoadDefaults()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), common.ErrorInvalidArgument)
		})
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.SessionTimeout = 5 * time.Minute
	cfg.LockTTL = 30 * time.Second
	assert.NoError(t, cfg.Validate(), "local locks have no ttl")
}

func TestLoadConfig_Precedence(t *testing.T) {
	chdirTemp(t)

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"SRBIO_HTTP_ADDR=:7000\nSRBIO_MAX_NAME_LENGTH=20\nSRBIO_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"SRBIO_HTTP_ADDR", "SRBIO_MAX_NAME_LENGTH", "SRBIO_LOG_LEVEL"} {
			_ = os.Unsetenv(k)
		}
	})

	jsonPath := writeTempJSON(t, map[string]any{
		"http_addr":                 ":7500",
		"session_timeout":           "2m",
		"health_interval":           "30s",
		"publisher":                 "nats",
		"allowed_origins":           []string{"https://admin.example"},
		"clear_logs_after_download": true,
	})

	cfg, err := LoadConfig([]string{"-env", envFile, "-c", jsonPath, "-a", ":9000", "-probe-timeout", "3s"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr, "flag beats json and env")
	assert.Equal(t, 20, cfg.MaxNameLength, "env applies when nothing later sets it")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "nats", cfg.PublisherBackend)
	assert.Equal(t, []string{"https://admin.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.ClearLogsAfterDownload)
	assert.Equal(t, 12*time.Hour, cfg.AccessTokenValidity, "unset -t keeps the default")
}

func TestLoadConfig_Errors(t *testing.T) {
	chdirTemp(t)

	t.Run("missing explicit env file", func(t *testing.T) {
		_, err := LoadConfig([]string{"-env", filepath.Join(t.TempDir(), "nope.env")})
		require.Error(t, err)
	})

	t.Run("missing json file", func(t *testing.T) {
		_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := LoadConfig([]string{"-c", path})
		require.Error(t, err)
	})

	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("SRBIO_SESSION_TIMEOUT", "forever")
		_, err := LoadConfig(nil)
		require.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := LoadConfig([]string{"-db-driver", "oracle"})
		assert.ErrorIs(t, err, common.ErrorInvalidArgument)
	})
}
