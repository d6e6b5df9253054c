// Package config builds the runtime configuration of the sync service.
//
// Sources are layered, later ones overriding earlier ones:
// defaults, a dotenv file plus SRBIO_* environment variables, a JSON file
// given with -c/-config, and finally command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/srbio/internal/common"
)

// Config holds runtime settings. It is built once in main and passed to
// constructors explicitly.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	DatabaseDriver string // sqlite or pgx
	DatabaseDSN    string

	SecretKey           string
	AccessTokenValidity time.Duration

	TerminalDriver         string
	TerminalTimezone       string
	ConnectTimeout         time.Duration
	SessionTimeout         time.Duration
	MaxNameLength          int
	ClearLogsAfterDownload bool

	HealthInterval    time.Duration
	ProbeTimeout      time.Duration
	HealthConcurrency int

	LockBackend string // local or redis
	RedisURL    string
	LockTTL     time.Duration

	PublisherBackend string // none, nats, kafka, mqtt
	NATSURL          string
	KafkaBrokers     []string
	MQTTBrokerURL    string
	EventTopic       string

	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	LogLevel  string
	LogFormat string

	AllowedOrigins []string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and the S3 credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:srbio.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	c.SecretKey = "secretKey"
	c.AccessTokenValidity = 12 * time.Hour
	c.TerminalDriver = "sim"
	c.TerminalTimezone = "Local"
	c.ConnectTimeout = 5 * time.Second
	c.SessionTimeout = 60 * time.Second
	c.MaxNameLength = 24
	c.ClearLogsAfterDownload = false
	c.HealthInterval = 10 * time.Second
	c.ProbeTimeout = 1500 * time.Millisecond
	c.HealthConcurrency = 32
	c.LockBackend = "local"
	c.RedisURL = "redis://127.0.0.1:6379/0"
	c.LockTTL = 2 * time.Minute
	c.PublisherBackend = "none"
	c.NATSURL = "nats://127.0.0.1:4222"
	c.KafkaBrokers = []string{"127.0.0.1:9092"}
	c.MQTTBrokerURL = "tcp://127.0.0.1:1883"
	c.EventTopic = "srbio"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3Bucket = "srbio-backups"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.AllowedOrigins = []string{"*"}
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("database driver %q: %w", c.DatabaseDriver, common.ErrorInvalidArgument)
	}
	switch c.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("lock backend %q: %w", c.LockBackend, common.ErrorInvalidArgument)
	}
	switch c.PublisherBackend {
	case "none", "nats", "kafka", "mqtt":
	default:
		return fmt.Errorf("publisher backend %q: %w", c.PublisherBackend, common.ErrorInvalidArgument)
	}
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive: %w", common.ErrorInvalidArgument)
	}
	if c.HealthConcurrency <= 0 {
		return fmt.Errorf("health concurrency must be positive: %w", common.ErrorInvalidArgument)
	}
	if c.ConnectTimeout <= 0 || c.SessionTimeout <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive: %w", common.ErrorInvalidArgument)
	}
	// a redis lock must outlive the session it guards
	if c.LockBackend == "redis" && c.LockTTL <= c.SessionTimeout {
		return fmt.Errorf("lock ttl %s must exceed session timeout %s: %w", c.LockTTL, c.SessionTimeout, common.ErrorInvalidArgument)
	}
	return nil
}

// LoadConfig builds a Config from args (normally os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
