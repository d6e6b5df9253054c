package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/srbio/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-d", "-s", "-t",
	"-db-driver", "-terminal-driver", "-tz",
	"-connect-timeout", "-session-timeout", "-max-name-length", "-clear-logs",
	"-health-interval", "-probe-timeout", "-health-concurrency",
	"-lock", "-redis", "-publisher", "-nats", "-kafka", "-mqtt", "-topic",
	"-log-level", "-log-format", "-origins",
}

// parseFlags overlays command-line flags.
//
// Short forms:
//
//	-a string   HTTP bind address (e.g. ":8000")
//	-g string   gRPC health bind address
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//
// The remaining flags are long-form and take Go durations where relevant.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP address and port")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	tokenMinutes := fs.Int("t", int(cfg.AccessTokenValidity.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&cfg.DatabaseDriver, "db-driver", cfg.DatabaseDriver, "database driver (sqlite or pgx)")
	fs.StringVar(&cfg.TerminalDriver, "terminal-driver", cfg.TerminalDriver, "registered terminal driver name")
	fs.StringVar(&cfg.TerminalTimezone, "tz", cfg.TerminalTimezone, "IANA zone of terminal clocks")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "terminal connect timeout")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", cfg.SessionTimeout, "terminal session timeout")
	fs.IntVar(&cfg.MaxNameLength, "max-name-length", cfg.MaxNameLength, "max display name length pushed to terminals")
	fs.BoolVar(&cfg.ClearLogsAfterDownload, "clear-logs", cfg.ClearLogsAfterDownload, "clear terminal logs after a download by default")
	fs.DurationVar(&cfg.HealthInterval, "health-interval", cfg.HealthInterval, "reachability probe interval")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "reachability probe timeout")
	fs.IntVar(&cfg.HealthConcurrency, "health-concurrency", cfg.HealthConcurrency, "parallel probes per round")
	fs.StringVar(&cfg.LockBackend, "lock", cfg.LockBackend, "device lock backend (local or redis)")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "redis URL for the lock backend")
	fs.StringVar(&cfg.PublisherBackend, "publisher", cfg.PublisherBackend, "event publisher (none, nats, kafka, mqtt)")
	fs.StringVar(&cfg.NATSURL, "nats", cfg.NATSURL, "NATS server URL")
	kafka := fs.String("kafka", strings.Join(cfg.KafkaBrokers, ","), "comma separated Kafka brokers")
	fs.StringVar(&cfg.MQTTBrokerURL, "mqtt", cfg.MQTTBrokerURL, "MQTT broker URL")
	fs.StringVar(&cfg.EventTopic, "topic", cfg.EventTopic, "event subject/topic prefix")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text, zerolog)")
	origins := fs.String("origins", strings.Join(cfg.AllowedOrigins, ","), "comma separated CORS origins")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.AccessTokenValidity = time.Duration(*tokenMinutes) * time.Minute
		case "kafka":
			cfg.KafkaBrokers = splitList(*kafka)
		case "origins":
			cfg.AllowedOrigins = splitList(*origins)
		}
	})
	return nil
}
