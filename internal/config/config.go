// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "CONVERTER"

// Config holds the complete application configuration.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Fixer  FixerConfig `mapstructure:"fixer"`
	ECB    ECBConfig   `mapstructure:"ecb"`
	Cache  CacheConfig
	Worker WorkerConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int  `mapstructure:"port"`
	ServeSwagger      bool `mapstructure:"serve_swagger"`
	ServeAsynqmon     bool `mapstructure:"serve_asynqmon"`
	RequestTimeoutSec int  `mapstructure:"request_timeout_sec"`
}

// RedisConfig holds connection settings for both Redis instances.
type RedisConfig struct {
	CacheAddr string `mapstructure:"cache_addr"` // Redis instance holding the rate snapshot (required).
	AsynqAddr string `mapstructure:"asynq_addr"` // Redis instance for the Asynq task queue (required).
}

// FixerConfig holds settings for the primary provider.
type FixerConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	AccessKey         string `mapstructure:"access_key"`
	TimeoutSec        int    `mapstructure:"timeout_sec"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// ECBConfig holds settings for the fallback provider.
type ECBConfig struct {
	URL        string `mapstructure:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// CacheConfig holds snapshot caching settings.
type CacheConfig struct {
	FreshnessSec int    `mapstructure:"freshness_sec"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// Freshness returns the maximum age of a cached snapshot.
func (c CacheConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessSec) * time.Second
}

// WorkerConfig holds background refresh settings.
type WorkerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Concurrency int    `mapstructure:"concurrency"`
	RefreshCron string `mapstructure:"refresh_cron"`
	MaxRetry    int    `mapstructure:"max_retry"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config search paths
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.serve_swagger", true)
	v.SetDefault("server.serve_asynqmon", true)
	v.SetDefault("server.request_timeout_sec", 15)
	v.SetDefault("redis.cache_addr", "redis_cache:6381")
	v.SetDefault("redis.asynq_addr", "redis_asynq:6380")
	v.SetDefault("fixer.base_url", "http://data.fixer.io/api")
	v.SetDefault("fixer.access_key", "")
	v.SetDefault("fixer.timeout_sec", 5)
	v.SetDefault("fixer.requests_per_minute", 60)
	v.SetDefault("ecb.url", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml")
	v.SetDefault("ecb.timeout_sec", 5)
	v.SetDefault("cache.freshness_sec", 3600)
	v.SetDefault("cache.key_prefix", "")
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.refresh_cron", "@every 30m")
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.timeout_sec", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}
	if c.Server.RequestTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout_sec must be positive, got %d", c.Server.RequestTimeoutSec))
	}

	if c.Redis.CacheAddr == "" {
		errs = append(errs, fmt.Errorf("redis.cache_addr is required (set %s_REDIS_CACHE_ADDR)", EnvPrefix))
	}
	if c.Redis.AsynqAddr == "" {
		errs = append(errs, fmt.Errorf("redis.asynq_addr is required (set %s_REDIS_ASYNQ_ADDR)", EnvPrefix))
	}

	if c.Fixer.BaseURL == "" {
		errs = append(errs, fmt.Errorf("fixer.base_url is required"))
	}
	if c.Fixer.AccessKey == "" {
		errs = append(errs, fmt.Errorf("fixer.access_key is required (set %s_FIXER_ACCESS_KEY)", EnvPrefix))
	}
	if c.Fixer.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("fixer.timeout_sec must be positive, got %d", c.Fixer.TimeoutSec))
	}
	if c.Fixer.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("fixer.requests_per_minute must be non-negative, got %d", c.Fixer.RequestsPerMinute))
	}

	if c.ECB.URL == "" {
		errs = append(errs, fmt.Errorf("ecb.url is required"))
	}
	if c.ECB.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("ecb.timeout_sec must be positive, got %d", c.ECB.TimeoutSec))
	}

	if c.Cache.FreshnessSec <= 0 {
		errs = append(errs, fmt.Errorf("cache.freshness_sec must be positive, got %d", c.Cache.FreshnessSec))
	}

	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
	}
	if c.Worker.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
	}
	if c.Worker.Enabled && c.Worker.RefreshCron == "" {
		errs = append(errs, fmt.Errorf("worker.refresh_cron is required when the worker is enabled"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
