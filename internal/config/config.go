// Package config loads server configuration from YAML files with
// sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"radbot-core/internal/pricing"
	"radbot-core/internal/storage"
)

// Config represents the complete server configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Engine     EngineConfig     `yaml:"engine"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig contains storage parameters.
type DatabaseConfig struct {
	Path      string      `yaml:"path"`
	UseMemory bool        `yaml:"use_memory"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig tunes the busy-retry loop for SQLite units of work.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"` // e.g. "50ms"
	Multiplier  float64 `yaml:"multiplier"`
}

// EngineConfig contains reconciliation parameters.
type EngineConfig struct {
	NativeTokenAddress string `yaml:"native_token_address"`
}

// StatisticsConfig contains aggregation parameters.
type StatisticsConfig struct {
	DailyRetentionDays int `yaml:"daily_retention_days"`
}

// ServerConfig contains HTTP listener addresses.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	policy := storage.DefaultRetryPolicy()
	return &Config{
		Database: DatabaseConfig{
			Path: "radbot.db",
			Retry: RetryConfig{
				MaxAttempts: policy.MaxAttempts,
				BaseDelay:   policy.BaseDelay.String(),
				Multiplier:  policy.Multiplier,
			},
		},
		Engine: EngineConfig{
			NativeTokenAddress: pricing.XRDAddress,
		},
		Statistics: StatisticsConfig{
			DailyRetentionDays: 30,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			MetricsAddr: ":9090",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Database.UseMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required (or set database.use_memory)")
	}
	if c.Database.Retry.MaxAttempts < 1 {
		return fmt.Errorf("database.retry.max_attempts must be at least 1")
	}
	if c.Database.Retry.Multiplier < 1 {
		return fmt.Errorf("database.retry.multiplier must be at least 1")
	}
	if _, err := time.ParseDuration(c.Database.Retry.BaseDelay); err != nil {
		return fmt.Errorf("database.retry.base_delay: %w", err)
	}
	if c.Engine.NativeTokenAddress == "" {
		return fmt.Errorf("engine.native_token_address is required")
	}
	if c.Statistics.DailyRetentionDays < 1 {
		return fmt.Errorf("statistics.daily_retention_days must be at least 1")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	return nil
}

// RetryPolicy converts the retry section into a storage policy.
// Validate must have passed before calling.
func (c *Config) RetryPolicy() storage.RetryPolicy {
	delay, _ := time.ParseDuration(c.Database.Retry.BaseDelay)
	return storage.RetryPolicy{
		MaxAttempts: c.Database.Retry.MaxAttempts,
		BaseDelay:   delay,
		Multiplier:  c.Database.Retry.Multiplier,
	}
}
