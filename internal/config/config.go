// Package config loads engine configuration from a YAML file with
// environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the do-not-contact engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	DNC      DNCConfig      `yaml:"dnc"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds settings for the optional Redis snapshot store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DNCConfig holds engine settings.
//
// Matcher selects where evaluation reads go:
//   - "postgres": straight to the source of truth (default)
//   - "memory":   RAM snapshot, reloaded on SyncIntervalMinutes
//   - "redis":    shared Redis snapshot, synced on SyncIntervalMinutes
type DNCConfig struct {
	Matcher             string `yaml:"matcher"`
	SyncIntervalMinutes int    `yaml:"sync_interval_minutes"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactPIIEnabled reports the redaction setting; unset means on.
func (l LoggingConfig) RedactPIIEnabled() bool {
	return l.RedactPII == nil || *l.RedactPII
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.DNC.Matcher == "" {
		cfg.DNC.Matcher = "postgres"
	}
	if cfg.DNC.SyncIntervalMinutes == 0 {
		cfg.DNC.SyncIntervalMinutes = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	switch cfg.DNC.Matcher {
	case "postgres", "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid dnc.matcher %q", cfg.DNC.Matcher)
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML config and overrides it with environment
// variables. A .env file in the working directory is honored if present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if matcher := os.Getenv("DNC_MATCHER"); matcher != "" {
		cfg.DNC.Matcher = matcher
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
