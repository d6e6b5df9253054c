package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"database_driver":    "pgx",
		"database_dsn":       "postgres://u:p@db:5432/srbio",
		"connect_timeout":    2000000000,
		"probe_timeout":      "750ms",
		"kafka_brokers":      []string{"k1:9092", "k2:9092"},
		"health_concurrency": 8,
		"terminal_timezone":  "Europe/Riga",
	})

	t.Run("overlays present keys", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "pgx", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://u:p@db:5432/srbio", cfg.DatabaseDSN)
		assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
		assert.Equal(t, 750*time.Millisecond, cfg.ProbeTimeout)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, 8, cfg.HealthConcurrency)
		assert.Equal(t, "Europe/Riga", cfg.TerminalTimezone)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, ":8000", cfg.HTTPAddr)
		assert.Equal(t, 60*time.Second, cfg.SessionTimeout)
		assert.Equal(t, 24, cfg.MaxNameLength)
	})

	t.Run("no config flag is a no-op", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "x:1"}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, "x:1", cfg.HTTPAddr)
	})
}
