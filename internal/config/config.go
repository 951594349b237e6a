// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ArchivePolicy decides what archiving does to outstanding registrations.
type ArchivePolicy string

const (
	// ArchiveRetainTickets leaves confirmed registrations check-in-able.
	ArchiveRetainTickets ArchivePolicy = "retain_tickets"
	// ArchiveCancelRegistrations cancels confirmed registrations on archive.
	ArchiveCancelRegistrations ArchivePolicy = "cancel_registrations"
)

// Config holds all service settings.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ArchivePolicy   ArchivePolicy `env:"ARCHIVE_POLICY" envDefault:"retain_tickets"`

	Database Database
	Redis    Redis
	Fanout   Fanout

	RabbitURL string `env:"RABBITMQ_URL"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"campusevents"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"20"`
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL builds a postgres:// connection URL.
func (d Database) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// Redis holds favorites store settings.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Fanout tunes the post-commit notification queue.
type Fanout struct {
	Workers     int           `env:"FANOUT_WORKERS" envDefault:"4"`
	QueueSize   int           `env:"FANOUT_QUEUE_SIZE" envDefault:"1024"`
	MaxAttempts int           `env:"FANOUT_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"FANOUT_RETRY_DELAY" envDefault:"200ms"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.ArchivePolicy {
	case ArchiveRetainTickets, ArchiveCancelRegistrations:
	default:
		return fmt.Errorf("config: unknown ARCHIVE_POLICY %q", c.ArchivePolicy)
	}
	if c.Fanout.Workers <= 0 {
		return errors.New("config: FANOUT_WORKERS must be positive")
	}
	if c.Fanout.QueueSize <= 0 {
		return errors.New("config: FANOUT_QUEUE_SIZE must be positive")
	}
	if c.Fanout.MaxAttempts <= 0 {
		return errors.New("config: FANOUT_MAX_ATTEMPTS must be positive")
	}
	if c.Database.MaxConns <= 0 {
		return errors.New("config: DB_MAX_CONNS must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	return lvl, nil
}
