// Package config loads client configuration from LEARNHUB_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "LEARNHUB_"

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the client configuration.
type Config struct {
	// APIURL is the remote API base, e.g. https://learnhub.example/api.
	APIURL  string        `env:"API_URL" envDefault:"http://localhost:8000/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// Path is the client route the CLI acts on; it drives route classification.
	Path      string  `env:"PATH" envDefault:"/dashboard"`
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`
	LogLevel  string  `env:"LOG_LEVEL" envDefault:"info"`

	Storage StorageConfig `envPrefix:"STORAGE_"`
}

// StorageConfig selects and configures the durable storage backend.
type StorageConfig struct {
	Backend     string `env:"BACKEND" envDefault:"file"`
	Dir         string `env:"DIR"`
	Passphrase  string `env:"PASSPHRASE"`
	RedisURL    string `env:"REDIS_URL"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	Namespace   string `env:"NAMESPACE" envDefault:"default"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses configuration from vars (names without Prefix) instead of the environment.
func FromMap(vars map[string]string) (Config, error) {
	m := make(map[string]string, len(vars))
	for k, v := range vars {
		m[Prefix+k] = v
	}
	return parse(env.Options{Prefix: Prefix, Environment: m})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Path == "" {
		c.Path = "/dashboard"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		c.RateBurst = 1
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "default"
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %sAPI_URL %q", Prefix, c.APIURL)
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%sSTORAGE_REDIS_URL is required for the redis backend", Prefix)
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%sSTORAGE_POSTGRES_DSN is required for the postgres backend", Prefix)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
