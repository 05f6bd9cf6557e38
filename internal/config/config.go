// Package config loads the talekeeper.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Serve    ServeConfig    `yaml:"serve"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// DatabaseConfig selects the session backend by DSN scheme: sqlite:// or
// postgres://.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type ServeConfig struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport"`
	Listen    string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TrackingConfig tunes projection behavior per project.
type TrackingConfig struct {
	// SnapshotEveryChapter caches a projection at each chapter boundary.
	SnapshotEveryChapter bool `yaml:"snapshot_every_chapter"`
	// FullReplayCheck re-derives projections from scratch and compares,
	// for debugging snapshot drift.
	FullReplayCheck bool `yaml:"full_replay_check"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Serve.Transport) == "" {
		cfg.Serve.Transport = "stdio"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		return fmt.Errorf("database dsn is required")
	}
	if !strings.HasPrefix(dsn, "sqlite://") && !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("unsupported database dsn scheme: %s", dsn)
	}

	switch cfg.Serve.Transport {
	case "stdio":
	case "http":
		if strings.TrimSpace(cfg.Serve.Listen) == "" {
			return fmt.Errorf("serve listen address is required for http transport")
		}
	default:
		return fmt.Errorf("unsupported serve transport: %s", cfg.Serve.Transport)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging level: %s", cfg.Logging.Level)
	}

	return nil
}
