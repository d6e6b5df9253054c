package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/srbio/internal/flagx"
	"github.com/dmitrijs2005/srbio/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// both "1.5s" strings and integer nanoseconds. Pointers distinguish an
// absent key from an explicit zero value.
type JsonConfig struct {
	HTTPAddr               string         `json:"http_addr"`
	GRPCAddr               string         `json:"grpc_addr"`
	DatabaseDriver         string         `json:"database_driver"`
	DatabaseDSN            string         `json:"database_dsn"`
	SecretKey              string         `json:"secret_key"`
	AccessTokenValidity    timex.Duration `json:"access_token_validity"`
	TerminalDriver         string         `json:"terminal_driver"`
	TerminalTimezone       string         `json:"terminal_timezone"`
	ConnectTimeout         timex.Duration `json:"connect_timeout"`
	SessionTimeout         timex.Duration `json:"session_timeout"`
	MaxNameLength          int            `json:"max_name_length"`
	ClearLogsAfterDownload *bool          `json:"clear_logs_after_download"`
	HealthInterval         timex.Duration `json:"health_interval"`
	ProbeTimeout           timex.Duration `json:"probe_timeout"`
	HealthConcurrency      int            `json:"health_concurrency"`
	LockBackend            string         `json:"lock_backend"`
	RedisURL               string         `json:"redis_url"`
	LockTTL                timex.Duration `json:"lock_ttl"`
	PublisherBackend       string         `json:"publisher"`
	NATSURL                string         `json:"nats_url"`
	KafkaBrokers           []string       `json:"kafka_brokers"`
	MQTTBrokerURL          string         `json:"mqtt_broker_url"`
	EventTopic             string         `json:"event_topic"`
	S3AccessKey            string         `json:"s3_access_key"`
	S3SecretKey            string         `json:"s3_secret_key"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Region               string         `json:"s3_region"`
	S3BaseEndpoint         string         `json:"s3_base_endpoint"`
	LogLevel               string         `json:"log_level"`
	LogFormat              string         `json:"log_format"`
	AllowedOrigins         []string       `json:"allowed_origins"`
}

// parseJson overlays values from the file named by -c/-config. Keys that
// are missing or zero in the file leave the current value untouched.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setStr(&cfg.HTTPAddr, c.HTTPAddr)
	setStr(&cfg.GRPCAddr, c.GRPCAddr)
	setStr(&cfg.DatabaseDriver, c.DatabaseDriver)
	setStr(&cfg.DatabaseDSN, c.DatabaseDSN)
	setStr(&cfg.SecretKey, c.SecretKey)
	setDur(&cfg.AccessTokenValidity, c.AccessTokenValidity)
	setStr(&cfg.TerminalDriver, c.TerminalDriver)
	setStr(&cfg.TerminalTimezone, c.TerminalTimezone)
	setDur(&cfg.ConnectTimeout, c.ConnectTimeout)
	setDur(&cfg.SessionTimeout, c.SessionTimeout)
	if c.MaxNameLength != 0 {
		cfg.MaxNameLength = c.MaxNameLength
	}
	if c.ClearLogsAfterDownload != nil {
		cfg.ClearLogsAfterDownload = *c.ClearLogsAfterDownload
	}
	setDur(&cfg.HealthInterval, c.HealthInterval)
	setDur(&cfg.ProbeTimeout, c.ProbeTimeout)
	if c.HealthConcurrency != 0 {
		cfg.HealthConcurrency = c.HealthConcurrency
	}
	setStr(&cfg.LockBackend, c.LockBackend)
	setStr(&cfg.RedisURL, c.RedisURL)
	setDur(&cfg.LockTTL, c.LockTTL)
	setStr(&cfg.PublisherBackend, c.PublisherBackend)
	setStr(&cfg.NATSURL, c.NATSURL)
	if len(c.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = c.KafkaBrokers
	}
	setStr(&cfg.MQTTBrokerURL, c.MQTTBrokerURL)
	setStr(&cfg.EventTopic, c.EventTopic)
	setStr(&cfg.S3AccessKey, c.S3AccessKey)
	setStr(&cfg.S3SecretKey, c.S3SecretKey)
	setStr(&cfg.S3Bucket, c.S3Bucket)
	setStr(&cfg.S3Region, c.S3Region)
	setStr(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setStr(&cfg.LogLevel, c.LogLevel)
	setStr(&cfg.LogFormat, c.LogFormat)
	if len(c.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigins
	}

	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
