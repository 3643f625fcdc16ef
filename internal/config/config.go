package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const DefaultPath = "configs/config.yaml"

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":3000"`
		BodyLimit       string        `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"64M"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	} `yaml:"server"`

	API struct {
		BaseURL string `yaml:"base_url" env:"API_URL" env-default:"http://localhost:8000"`
		// Timeout of zero leaves predict calls unbounded
		Timeout         time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"0s"`
		RateLimit       int           `yaml:"rate_limit" env:"API_RATE_LIMIT" env-default:"0"`
		RateInterval    time.Duration `yaml:"rate_interval" env:"API_RATE_INTERVAL" env-default:"1s"`
		// BreakerFailures of zero disables the circuit breaker
		BreakerFailures uint32        `yaml:"breaker_failures" env:"API_BREAKER_FAILURES" env-default:"0"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"API_BREAKER_COOLDOWN" env-default:"30s"`
	} `yaml:"api"`

	Session struct {
		Store        string        `yaml:"store" env:"SESSION_STORE" env-default:"memory"`
		TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"1h"`
		CookieName   string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"sid"`
		CookieSecure bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
		// LoadingTimeout is how long a submission may stay in flight before
		// the session is allowed to move on without it
		LoadingTimeout time.Duration `yaml:"loading_timeout" env:"SESSION_LOADING_TIMEOUT" env-default:"10m"`
	} `yaml:"session"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	RabbitMQ struct {
		// URL left empty disables the analysis journal
		URL string `yaml:"url" env:"RABBITMQ_URL"`
	} `yaml:"rabbitmq"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`

	Log struct {
		Debug bool `yaml:"debug" env:"LOG_DEBUG" env-default:"false"`
	} `yaml:"log"`
}

// LoadConfig loads .env, then reads the YAML file at CONFIG_PATH (or
// DefaultPath) when it exists and overlays environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	return Load(path)
}

// Load reads config from path, falling back to environment only when the
// file does not exist.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}

	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.LoadingTimeout <= 0 {
		return fmt.Errorf("session.loading_timeout must be positive")
	}
	if c.API.Timeout > 0 && c.Session.LoadingTimeout <= c.API.Timeout {
		return fmt.Errorf("session.loading_timeout must exceed api.timeout")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.RateInterval <= 0 {
		return fmt.Errorf("api.rate_interval must be positive when api.rate_limit is set")
	}

	return nil
}

// JournalEnabled reports whether settled analyses are published
func (c *Config) JournalEnabled() bool {
	return c.RabbitMQ.URL != ""
}
