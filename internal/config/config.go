// Package config loads service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Stats backends for rate limit decisions
const (
	StatsBackendNone   = "none"
	StatsBackendMemory = "memory"
	StatsBackendBadger = "badger"
	StatsBackendRedis  = "redis"
)

type ExchangeRateConfig struct {
	ApiUrl            string        `envconfig:"API_URL" default:"https://api.exchangerate-api.com/v4"`
	FallbackUrl       string        `envconfig:"FALLBACK_URL"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	RequestsPerMinute int           `envconfig:"REQUESTS_PER_MINUTE" default:"60"`
	BurstSize         int           `envconfig:"BURST_SIZE" default:"10"`
}

type CacheConfig struct {
	TTL           time.Duration `envconfig:"TTL" default:"5m"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	Prefix   string        `envconfig:"PREFIX" default:"ratelimit:stats"`
	TTL      time.Duration `envconfig:"TTL" default:"24h"`
	// Bucket is "minute" for per minute hashes or "none"
	Bucket   string        `envconfig:"BUCKET" default:"minute"`
}

type StatsConfig struct {
	Backend    string      `envconfig:"BACKEND" default:"none"`
	TrackKeys  bool        `envconfig:"TRACK_KEYS" default:"false"`
	BadgerPath string      `envconfig:"BADGER_PATH"`
	Redis      RedisConfig `envconfig:"REDIS"`
}

type RateLimitConfig struct {
	Points            int           `envconfig:"POINTS" default:"100"`
	Duration          time.Duration `envconfig:"DURATION" default:"60s"`
	CleanupEvery      time.Duration `envconfig:"CLEANUP_EVERY" default:"2m"`
	TrustForwardedFor bool          `envconfig:"TRUST_FORWARDED_FOR" default:"false"`
	KeyHeader         string        `envconfig:"KEY_HEADER"`
	Stats             StatsConfig   `envconfig:"STATS"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080,http://127.0.0.1:8080"`
}

// Config is the full service configuration
type Config struct {
	Port       int                `envconfig:"PORT" default:"8080"`
	ServerName string             `envconfig:"SERVER_NAME" default:"unknown"`
	Env        string             `envconfig:"ENV" default:"development"`
	LogLevel   string             `envconfig:"LOG_LEVEL" default:"INFO"`
	Exchange   ExchangeRateConfig `envconfig:"EXCHANGE_RATE"`
	Cache      CacheConfig        `envconfig:"CACHE"`
	RateLimit  RateLimitConfig    `envconfig:"RATE_LIMIT"`
	CORS       CORSConfig         `envconfig:"CORS"`
}

// Load reads the given .env files (or ./.env when none are given) and then
// the process environment. Variables already set in the environment win.
// A missing default .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.RateLimit.Stats.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Stats.Backend))
	cfg.RateLimit.Stats.Redis.Bucket = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Stats.Redis.Bucket))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.Exchange.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("EXCHANGE_RATE_HTTP_TIMEOUT must be positive"))
	}
	if c.Exchange.RequestsPerMinute < 0 || c.Exchange.BurstSize < 0 {
		errs = append(errs, errors.New("EXCHANGE_RATE_REQUESTS_PER_MINUTE and EXCHANGE_RATE_BURST_SIZE must not be negative"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = append(errs, errors.New("CACHE_SWEEP_INTERVAL must be positive"))
	}
	if c.RateLimit.Points <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_POINTS must be positive"))
	}
	if c.RateLimit.Duration <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_DURATION must be positive"))
	} else if c.RateLimit.Duration%time.Second != 0 {
		errs = append(errs, errors.New("RATE_LIMIT_DURATION must be a whole number of seconds"))
	}
	if c.RateLimit.CleanupEvery <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CLEANUP_EVERY must be positive"))
	}

	switch c.RateLimit.Stats.Backend {
	case StatsBackendNone, StatsBackendMemory, StatsBackendBadger, StatsBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_STATS_BACKEND %q", c.RateLimit.Stats.Backend))
	}

	switch c.RateLimit.Stats.Redis.Bucket {
	case "minute", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_STATS_REDIS_BUCKET %q", c.RateLimit.Stats.Redis.Bucket))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
