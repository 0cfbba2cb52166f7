// Package config provides configuration management for the tracker client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"divtrack/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Market  MarketConfig  `mapstructure:"market"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Dir is the directory the config was loaded from.
	Dir string `mapstructure:"-"`
}

// APIConfig holds remote service settings.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=1"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" validate:"gt=0"`
}

// MarketConfig holds market data window settings.
type MarketConfig struct {
	HistoryDays   int    `mapstructure:"history_days" validate:"gte=1,lte=3650"`
	DividendLimit int    `mapstructure:"dividend_limit" validate:"gte=1,lte=50"`
	DefaultTicker string `mapstructure:"default_ticker"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RedisURL     string        `mapstructure:"redis_url"`
	QuoteTTL     time.Duration `mapstructure:"quote_ttl" validate:"gte=0"`
	HistoryTTL   time.Duration `mapstructure:"history_ttl" validate:"gte=0"`
	DividendsTTL time.Duration `mapstructure:"dividends_ttl" validate:"gte=0"`
}

// SessionConfig holds token persistence settings.
type SessionConfig struct {
	TokenBackend          string `mapstructure:"token_backend" validate:"oneof=file sqlite memory"`
	TokenPath             string `mapstructure:"token_path"`
	DBPath                string `mapstructure:"db_path"`
	ReconcileAfterUpgrade bool   `mapstructure:"reconcile_after_upgrade"`
	AuditEnabled          bool   `mapstructure:"audit_enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/divtrack"
	}
	return filepath.Join(home, ".config", "divtrack")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A missing config.toml is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Dir = configDir
	cfg.resolvePaths()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.rate_limit_rps", 10.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.breaker_failures", 5)
	v.SetDefault("api.breaker_timeout", "30s")

	v.SetDefault("market.history_days", 30)
	v.SetDefault("market.dividend_limit", 10)
	v.SetDefault("market.default_ticker", "AAPL")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.quote_ttl", "30s")
	v.SetDefault("cache.history_ttl", "10m")
	v.SetDefault("cache.dividends_ttl", "1h")

	v.SetDefault("session.token_backend", "file")
	v.SetDefault("session.token_path", "")
	v.SetDefault("session.db_path", "")
	v.SetDefault("session.reconcile_after_upgrade", false)
	v.SetDefault("session.audit_enabled", true)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.path", "")

	v.SetDefault("metrics.addr", "")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIVTRACK_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("DIVTRACK_REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("DIVTRACK_TOKEN_BACKEND"); v != "" {
		cfg.Session.TokenBackend = v
	}
	if v := os.Getenv("DIVTRACK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

func (c *Config) resolvePaths() {
	if c.Session.TokenPath == "" {
		c.Session.TokenPath = filepath.Join(c.Dir, "session.json")
	}
	if c.Session.DBPath == "" {
		c.Session.DBPath = filepath.Join(c.Dir, "divtrack.db")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(c.Dir, "logs", "divtrack.log")
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Cache.Enabled && c.Cache.RedisURL != "" &&
		!strings.HasPrefix(c.Cache.RedisURL, "redis://") && !strings.HasPrefix(c.Cache.RedisURL, "rediss://") {
		return fmt.Errorf("cache.redis_url must start with redis:// or rediss://")
	}

	return nil
}

// LoggingConfig converts the log section into a logging.LogConfig.
func (c *Config) LoggingConfig() logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = c.Log.Level
	lc.Console = c.Log.Console
	lc.File = c.Log.File
	lc.FilePath = c.Log.Path
	return lc
}
