package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Binance   BinanceConfig   `yaml:"binance"`
	Yahoo     ProviderConfig  `yaml:"yahoo"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

// BinanceConfig holds Binance USDT-M futures settings
type BinanceConfig struct {
	Key       string `yaml:"key"`
	Secret    string `yaml:"secret"`
	Testnet   bool   `yaml:"testnet"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Enabled   bool `yaml:"enabled"`
	RateLimit int  `yaml:"rate_limit"` // requests per minute
}

// AnalysisConfig holds defaults for bar queries and event classification
type AnalysisConfig struct {
	Source         string `yaml:"source"`
	Interval       string `yaml:"interval"`
	Limit          int    `yaml:"limit"`
	Classification string `yaml:"classification"` // "trend" or "bos-only"
}

// SnapshotConfig holds snapshot store settings
type SnapshotConfig struct {
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
	MaxPages int    `yaml:"max_pages"` // 0 leaves SQLite's default
}

// ScannerConfig holds scanner settings
type ScannerConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig holds the snapshot refresh job
type SchedulerConfig struct {
	Spec     string   `yaml:"spec"` // cron spec with seconds; empty disables
	Universe string   `yaml:"universe"`
	Symbols  []string `yaml:"symbols"`
}

// WebConfig holds HTTP server settings
type WebConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Binance: BinanceConfig{
			Key:       os.Getenv("BINANCE_API_KEY"),
			Secret:    os.Getenv("BINANCE_API_SECRET"),
			RateLimit: 1200,
		},
		Yahoo: ProviderConfig{
			Enabled:   true,
			RateLimit: 30,
		},
		Analysis: AnalysisConfig{
			Source:         "binance",
			Interval:       "1h",
			Limit:          500,
			Classification: "trend",
		},
		Snapshot: SnapshotConfig{
			Path:     "./data/snapshots.db",
			Capacity: 10,
		},
		Scanner: ScannerConfig{
			Workers: 5,
			Timeout: 2 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Universe: "crypto-majors",
		},
		Web: WebConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A .env file in the working
// directory is read first; environment variables win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		c.Binance.Key = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		c.Binance.Secret = secret
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		testnet, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing BINANCE_TESTNET: %w", err)
		}
		c.Binance.Testnet = testnet
	}
	if path := os.Getenv("CHANLENS_DB"); path != "" {
		c.Snapshot.Path = path
	}
	if level := os.Getenv("CHANLENS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.Limit < 1 || c.Analysis.Limit > 1500 {
		return fmt.Errorf("analysis.limit must be between 1 and 1500")
	}
	switch c.Analysis.Classification {
	case "", "trend", "bos-only":
	default:
		return fmt.Errorf("analysis.classification must be trend or bos-only, got %q", c.Analysis.Classification)
	}
	if c.Snapshot.Capacity < 1 {
		return fmt.Errorf("snapshot.capacity must be at least 1")
	}
	if c.Snapshot.MaxPages < 0 {
		return fmt.Errorf("snapshot.max_pages must not be negative")
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Binance.RateLimit < 1 {
		return fmt.Errorf("binance.rate_limit must be at least 1")
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}
