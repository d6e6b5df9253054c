package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/srbio/internal/flagx"
)

const envPrefix = "SRBIO_"

// parseEnv loads a dotenv file (from -env, or ./.env when present) and then
// overlays SRBIO_* variables. Variables already set in the process
// environment win over the file, as godotenv.Load never overwrites.
func parseEnv(cfg *Config, args []string) error {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = splitList(v)
		}
	}

	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("GRPC_ADDR", &cfg.GRPCAddr)
	str("DB_DRIVER", &cfg.DatabaseDriver)
	str("DB_DSN", &cfg.DatabaseDSN)
	str("SECRET_KEY", &cfg.SecretKey)
	dur("ACCESS_TOKEN_VALIDITY", &cfg.AccessTokenValidity)
	str("TERMINAL_DRIVER", &cfg.TerminalDriver)
	str("TERMINAL_TIMEZONE", &cfg.TerminalTimezone)
	dur("CONNECT_TIMEOUT", &cfg.ConnectTimeout)
	dur("SESSION_TIMEOUT", &cfg.SessionTimeout)
	num("MAX_NAME_LENGTH", &cfg.MaxNameLength)
	boolean("CLEAR_LOGS_AFTER_DOWNLOAD", &cfg.ClearLogsAfterDownload)
	dur("HEALTH_INTERVAL", &cfg.HealthInterval)
	dur("PROBE_TIMEOUT", &cfg.ProbeTimeout)
	num("HEALTH_CONCURRENCY", &cfg.HealthConcurrency)
	str("LOCK_BACKEND", &cfg.LockBackend)
	str("REDIS_URL", &cfg.RedisURL)
	dur("LOCK_TTL", &cfg.LockTTL)
	str("PUBLISHER", &cfg.PublisherBackend)
	str("NATS_URL", &cfg.NATSURL)
	list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("MQTT_BROKER_URL", &cfg.MQTTBrokerURL)
	str("EVENT_TOPIC", &cfg.EventTopic)
	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
