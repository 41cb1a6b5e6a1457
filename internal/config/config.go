package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"classrally"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Session   Session
	Postgres  Postgres
	Redis     Redis
	Security  Security
	Generator Generator
	Content   Content
}

// Session governs the live session engine.
type Session struct {
	// StoreBackend selects where session documents live: "memory" for a
	// single instance, "redis" to share sessions across instances.
	StoreBackend string        `env:"SESSION_STORE" envDefault:"memory"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	TickInterval time.Duration `env:"COUNTDOWN_TICK_INTERVAL" envDefault:"250ms"`
}

// Postgres captures connection info for the SQL database. Leaving PG_HOST
// empty runs the service without the quiz library and result archive.
type Postgres struct {
	Host     string `env:"PG_HOST"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Enabled reports whether a database is configured.
func (p Postgres) Enabled() bool {
	return p.Host != ""
}

// Redis holds session store configuration, required when SESSION_STORE=redis.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing participant tokens.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
}

// Generator configures the question generation service.
type Generator struct {
	URL         string        `env:"GENERATOR_URL"`
	APIKey      string        `env:"GENERATOR_API_KEY"`
	HTTPTimeout time.Duration `env:"GENERATOR_HTTP_TIMEOUT" envDefault:"30s"`
}

// Content configures the document extraction service.
type Content struct {
	URL         string        `env:"CONTENT_URL"`
	APIKey      string        `env:"CONTENT_API_KEY"`
	HTTPTimeout time.Duration `env:"CONTENT_HTTP_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into App config. Required variables are
// tagged notEmpty; everything else is optional or defaulted, so the minimal
// deployment (memory store, no Postgres, no external services) boots with
// just JWT_SECRET set.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	switch c.Session.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.StoreBackend)
	}
	if c.Postgres.Enabled() {
		if c.Postgres.User == "" || c.Postgres.Database == "" {
			return fmt.Errorf("PG_HOST is set but PG_USER or PG_DATABASE is missing")
		}
	}
	return nil
}
