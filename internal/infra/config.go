package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies the dashboard to upstream APIs.
	DefaultUserAgent = "crypto-dash/1.0 (+https://www.coingecko.com/en/api)"

	envPrefix = "CRYPTO_DASH_"
)

// Config holds every setting of the application. LoadConfig applies
// defaults, then the YAML file, then environment overrides.
type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Version     string `yaml:"version"`
		InboxSize   int    `yaml:"inbox_size"`
		LoadOnStart bool   `yaml:"load_on_start"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		StreamBuffer    int           `yaml:"stream_buffer"`
		Pprof           bool          `yaml:"pprof"`
	} `yaml:"server"`

	CoinGecko struct {
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		Timeout           time.Duration `yaml:"timeout"`
		PerPage           int           `yaml:"per_page"`
		SearchPageSize    int           `yaml:"search_page_size"`
		SearchLimit       int           `yaml:"search_limit"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
	} `yaml:"coingecko"`

	Effects struct {
		MaxRetries      int           `yaml:"max_retries"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		SearchDebounce  time.Duration `yaml:"search_debounce"`
		MinSearchLength int           `yaml:"min_search_length"`
	} `yaml:"effects"`

	Charts struct {
		CacheTTL    time.Duration `yaml:"cache_ttl"`
		MaxParallel int           `yaml:"max_parallel"`
	} `yaml:"charts"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"journal"`

	Icons struct {
		Enabled     bool   `yaml:"enabled"`
		Dir         string `yaml:"dir"`
		Size        int    `yaml:"size"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"icons"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() *Config {
	var c Config
	c.App.Name = "crypto-dash"
	c.App.Version = "dev"
	c.App.InboxSize = 256
	c.App.LoadOnStart = true

	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 5 * time.Second
	c.Server.CORSOrigins = []string{"*"}
	c.Server.StreamBuffer = 16

	c.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	c.CoinGecko.Timeout = 10 * time.Second
	c.CoinGecko.PerPage = 20
	c.CoinGecko.SearchPageSize = 100
	c.CoinGecko.SearchLimit = 10
	c.CoinGecko.RequestsPerSecond = 0.5 // free tier: 30 calls/minute
	c.CoinGecko.Burst = 3

	c.Effects.MaxRetries = 3
	c.Effects.RetryDelay = time.Second
	c.Effects.PollInterval = 3 * time.Second
	c.Effects.SearchDebounce = 300 * time.Millisecond
	c.Effects.MinSearchLength = 2

	c.Charts.CacheTTL = time.Minute
	c.Charts.MaxParallel = 4

	c.Journal.DSN = "file::memory:?cache=shared"

	c.Icons.Dir = "data/icons"
	c.Icons.Size = 24
	c.Icons.Concurrency = 5

	c.Logging.Level = "info"
	c.Logging.File = "logs/app.log"
	c.Logging.MaxSizeMB = 10
	c.Logging.MaxBackups = 3
	c.Logging.MaxAgeDays = 28
	c.Logging.Compress = true
	return &c
}

// LoadConfig reads path on top of the defaults. An empty path skips the
// file and uses defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &domain.ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
	}

	if c.App.InboxSize <= 0 {
		return invalid("app.inbox_size", "must be positive, got %d", c.App.InboxSize)
	}
	if c.Server.Addr == "" {
		return invalid("server.addr", "is required")
	}
	if !strings.HasPrefix(c.CoinGecko.BaseURL, "http://") && !strings.HasPrefix(c.CoinGecko.BaseURL, "https://") {
		return invalid("coingecko.base_url", "must be an http(s) URL: %q", c.CoinGecko.BaseURL)
	}
	if c.CoinGecko.Timeout <= 0 {
		return invalid("coingecko.timeout", "must be positive")
	}
	if c.CoinGecko.RequestsPerSecond < 0 {
		return invalid("coingecko.requests_per_second", "must not be negative")
	}
	if c.Effects.MaxRetries < 0 {
		return invalid("effects.max_retries", "must not be negative")
	}
	if c.Effects.RetryDelay < 0 {
		return invalid("effects.retry_delay", "must not be negative")
	}
	if c.Effects.PollInterval <= 0 {
		return invalid("effects.poll_interval", "must be positive")
	}
	if c.Effects.SearchDebounce < 0 {
		return invalid("effects.search_debounce", "must not be negative")
	}
	if c.Effects.MinSearchLength < 0 {
		return invalid("effects.min_search_length", "must not be negative")
	}
	if c.Icons.Enabled && c.Icons.Dir == "" {
		return invalid("icons.dir", "is required when icons are enabled")
	}
	if c.Icons.Enabled && c.Icons.Size <= 0 {
		return invalid("icons.size", "must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "unknown level %q", c.Logging.Level)
	}

	return nil
}

// overrideWithEnv lets the environment win over the file, e.g. for keys
// that should not be committed.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(envPrefix + "COINGECKO_BASE_URL"); v != "" {
		cfg.CoinGecko.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
		cfg.Journal.Enabled = true
	}
	if v := os.Getenv(envPrefix + "POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Effects.PollInterval = d
		}
	}
	if v := os.Getenv(envPrefix + "ICONS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Icons.Enabled = b
		}
	}
}
