// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is the client engine configuration, read from the environment (and .env via
// godotenv autoload in the binaries).
type Config struct {
	// APIURL is the base URL of the rules server, e.g. http://localhost:8080.
	APIURL string `env:"HOLO_API_URL" envDefault:"http://localhost:8080"`

	// Identity is the local mock credential presented to POST /session.
	Identity string `env:"HOLO_IDENTITY" envDefault:"player"`

	// CredentialPath persists the bearer token between runs; empty disables persistence.
	CredentialPath string `env:"HOLO_CREDENTIAL_PATH"`

	LobbyPollInterval time.Duration `env:"POLL_LOBBY_INTERVAL" envDefault:"2s"`
	MatchPollInterval time.Duration `env:"POLL_MATCH_INTERVAL" envDefault:"1500ms"`

	// ActionTimeout bounds a single submitted action; the in-flight guard is released on expiry.
	ActionTimeout time.Duration `env:"ACTION_TIMEOUT" envDefault:"10s"`

	// Locale selects the message catalog for refusal reasons (zh-TW or en).
	Locale string `env:"HOLO_LOCALE" envDefault:"zh-TW"`

	// RedisAddr enables the action-history publisher when set.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	HistoryQueue string `env:"HISTORY_QUEUE" envDefault:"holosync_actions"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("HOLO_API_URL must not be empty")
	}
	if c.LobbyPollInterval <= 0 || c.MatchPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.ActionTimeout <= 0 {
		return fmt.Errorf("ACTION_TIMEOUT must be positive")
	}
	return nil
}

// NewLogger builds the process logger. "json" format is meant for log collection,
// anything else gives the human readable text formatter.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.ToLower(c.LogFormat) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(os.Stderr)
	return logger
}
