// Package config loads the proxy's configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port            int           `env:"PORT" envDefault:"4000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Log      LogConfig
	NASA     NASAConfig
	Cache    CacheConfig
	Limits   LimitsConfig
	Tracing  TracingConfig
	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// NASAConfig holds upstream settings.
type NASAConfig struct {
	APIKey           string        `env:"NASA_API_KEY" envDefault:"DEMO_KEY"`
	BaseURL          string        `env:"NASA_BASE_URL" envDefault:"https://api.nasa.gov"`
	ImagesBaseURL    string        `env:"NASA_IMAGES_BASE_URL" envDefault:"https://images-api.nasa.gov"`
	Timeout          time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	RetryMaxAttempts int           `env:"UPSTREAM_RETRY_MAX_ATTEMPTS" envDefault:"1"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"1"`
}

// CacheConfig selects and sizes the response cache.
type CacheConfig struct {
	Backend    string        `env:"CACHE_BACKEND" envDefault:"memory"`
	TTL        time.Duration `env:"CACHE_TTL" envDefault:"600s"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"10000"`
}

// LimitsConfig holds the per-client gate and upstream quota thresholds.
type LimitsConfig struct {
	RPM           int64 `env:"RATE_LIMIT_RPM" envDefault:"100"`
	Burst         int64 `env:"RATE_LIMIT_BURST" envDefault:"100"`
	QuotaCritical int   `env:"QUOTA_CRITICAL" envDefault:"5"`
	QuotaWarning  int   `env:"QUOTA_WARNING" envDefault:"20"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate rejects values the proxy cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1-65535, got %d", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.NASA.APIKey == "" {
		errs = append(errs, errors.New("NASA_API_KEY must not be empty"))
	}
	for name, raw := range map[string]string{
		"NASA_BASE_URL":        c.NASA.BaseURL,
		"NASA_IMAGES_BASE_URL": c.NASA.ImagesBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw))
		}
	}
	if c.NASA.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.NASA.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("UPSTREAM_RETRY_MAX_ATTEMPTS must be >= 1, got %d", c.NASA.RetryMaxAttempts))
	}
	if c.NASA.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FETCH_CONCURRENCY must be >= 1, got %d", c.NASA.FetchConcurrency))
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.Cache.MaxEntries))
	}

	if c.Limits.RPM <= 0 || c.Limits.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPM and RATE_LIMIT_BURST must be positive"))
	}
	if c.Limits.QuotaCritical < 0 || c.Limits.QuotaWarning < c.Limits.QuotaCritical {
		errs = append(errs, fmt.Errorf("quota thresholds must satisfy 0 <= QUOTA_CRITICAL <= QUOTA_WARNING, got %d/%d",
			c.Limits.QuotaCritical, c.Limits.QuotaWarning))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE must be within [0,1], got %v", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}
