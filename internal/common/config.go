package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Jobs        JobsConfig      `toml:"jobs"`
	Report      ReportConfig    `toml:"report"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// CrawlerConfig contains site-crawl and browser-pool configuration
type CrawlerConfig struct {
	UserAgent              string        `toml:"user_agent"`
	MaxPages               int           `toml:"max_pages" validate:"gt=0"`              // Page budget per crawl
	RequestTimeout         time.Duration `toml:"request_timeout" validate:"gt=0"`        // Per-page-load timeout
	CrawlTimeout           time.Duration `toml:"crawl_timeout" validate:"gt=0"`          // Wall-clock budget per crawl
	RequestDelay           time.Duration `toml:"request_delay"`                          // Minimum delay between requests to one domain
	MaxConsecutiveFailures int           `toml:"max_consecutive_failures" validate:"gt=0"` // Dead-site cutoff
	PoolSize               int           `toml:"pool_size" validate:"gt=0"`              // Browser instances
	Headless               bool          `toml:"headless"`
	NoSandbox              bool          `toml:"no_sandbox"`
	DisableGPU             bool          `toml:"disable_gpu"`
}

// JobsConfig contains defaults for batch job execution
type JobsConfig struct {
	MaxRetries   int           `toml:"max_retries" validate:"gte=0"`  // Retries after the first attempt
	RetryBackoff time.Duration `toml:"retry_backoff" validate:"gte=0"` // Fixed delay between attempts
	Concurrency  int           `toml:"concurrency" validate:"gt=0"`   // Concurrent steps per job
}

// ReportConfig controls report assembly and storage behavior
type ReportConfig struct {
	CompressionThreshold int `toml:"compression_threshold" validate:"gt=0"` // Bytes; payloads above this are compressed
	PageSampleLimit      int `toml:"page_sample_limit" validate:"gt=0"`     // Max PageRecords kept on a report
}

// ScheduleConfig is one recurring audit schedule
type ScheduleConfig struct {
	Name    string   `toml:"name" validate:"required"`
	Cron    string   `toml:"cron" validate:"required"` // Cron schedule format
	Domains []string `toml:"domains" validate:"min=1"`
}

type SchedulerConfig struct {
	Enabled   bool             `toml:"enabled"`
	Schedules []ScheduleConfig `toml:"schedules" validate:"dive"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in prospect.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Crawler: CrawlerConfig{
			UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxPages:               60,
			RequestTimeout:         10 * time.Second,
			CrawlTimeout:           5 * time.Minute,
			RequestDelay:           500 * time.Millisecond,
			MaxConsecutiveFailures: 5,
			PoolSize:               2,
			Headless:               true,
			DisableGPU:             true,
		},
		Jobs: JobsConfig{
			MaxRetries:   2,
			RetryBackoff: 1 * time.Second,
			Concurrency:  1,
		},
		Report: ReportConfig{
			CompressionThreshold: 32 * 1024,
			PageSampleLimit:      50,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PROSPECT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if path := os.Getenv("PROSPECT_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("PROSPECT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if maxPages := os.Getenv("PROSPECT_CRAWLER_MAX_PAGES"); maxPages != "" {
		if n, err := strconv.Atoi(maxPages); err == nil {
			config.Crawler.MaxPages = n
		}
	}

	if concurrency := os.Getenv("PROSPECT_JOBS_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			config.Jobs.Concurrency = n
		}
	}

	if retries := os.Getenv("PROSPECT_JOBS_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.Jobs.MaxRetries = n
		}
	}
}
