// Package config loads server settings from the environment, a local .env
// file in development, or Docker secrets in production.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	BackendMemory   = "memory"
	BackendStatic   = "static"
	BackendPostgres = "postgres"

	BrokerLocal    = "local"
	BrokerRabbitMQ = "rabbitmq"
)

var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	SessionBackend string
	CatalogBackend string
	DatabaseURL    string

	Broker      string
	RabbitMQURL string

	JudgeURL          string
	JudgeAPIKey       string
	JudgeHost         string
	JudgePollInterval time.Duration
	JudgeTimeout      time.Duration

	RoomCodeLength int
}

// Load reads .env if present and then the environment. It does not validate.
func Load() (Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getString("CODEDUEL_HTTP_ADDR", ":3001"),
		CORSOrigins:    getList("CODEDUEL_CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       getString("CODEDUEL_LOG_LEVEL", "info"),
		LogFormat:      getString("CODEDUEL_LOG_FORMAT", "console"),
		SessionBackend: getString("CODEDUEL_SESSION_BACKEND", BackendMemory),
		CatalogBackend: getString("CODEDUEL_CATALOG_BACKEND", BackendStatic),
		DatabaseURL:    getString("CODEDUEL_DATABASE_URL", ""),
		Broker:         getString("CODEDUEL_BROKER", BrokerLocal),
		RabbitMQURL:    getString("CODEDUEL_RABBITMQ_URL", ""),
		JudgeURL:       getString("CODEDUEL_JUDGE_URL", ""),
		JudgeAPIKey:    getString("CODEDUEL_JUDGE_API_KEY", ""),
		JudgeHost:      getString("CODEDUEL_JUDGE_HOST", ""),
	}

	var err error
	cfg.JudgePollInterval, err = getDuration("CODEDUEL_JUDGE_POLL_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.JudgeTimeout, err = getDuration("CODEDUEL_JUDGE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.RoomCodeLength, err = getInt("CODEDUEL_ROOM_CODE_LENGTH", 7)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	problem := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.SessionBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problem("session backend %q needs CODEDUEL_DATABASE_URL", c.SessionBackend)
		}
	default:
		problem("unknown session backend %q", c.SessionBackend)
	}

	switch c.CatalogBackend {
	case BackendStatic:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problem("catalog backend %q needs CODEDUEL_DATABASE_URL", c.CatalogBackend)
		}
	default:
		problem("unknown catalog backend %q", c.CatalogBackend)
	}

	switch c.Broker {
	case BrokerLocal:
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			problem("broker %q needs CODEDUEL_RABBITMQ_URL", c.Broker)
		}
	default:
		problem("unknown broker %q", c.Broker)
	}

	if c.JudgeURL != "" {
		if u, err := url.Parse(c.JudgeURL); err != nil || u.Scheme == "" || u.Host == "" {
			problem("CODEDUEL_JUDGE_URL %q is not an absolute URL", c.JudgeURL)
		}
	}
	if c.JudgePollInterval <= 0 || c.JudgeTimeout <= 0 {
		problem("judge poll interval and timeout must be positive")
	}
	if c.RoomCodeLength < 4 {
		problem("room code length %d is too short", c.RoomCodeLength)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		problem("unknown log format %q", c.LogFormat)
	}
	return errs
}

// OriginHosts strips the scheme from each CORS origin, the form websocket
// origin checks match against.
func (c Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.CORSOrigins))
	for _, o := range c.CORSOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
