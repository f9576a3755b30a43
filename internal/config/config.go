// internal/config/config.go
//
// Process configuration.
// Responsibilities:
//   - Load an optional .env file (missing file is fine).
//   - Populate Config from the environment with defaults.
//   - Reject values the rest of the process cannot run with.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Port      int    `envconfig:"PORT" default:"3000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// StoreDriver is sqlite, postgres or memory. Empty means postgres when
	// DATABASE_URL is set, sqlite otherwise.
	StoreDriver  string        `envconfig:"STORE_DRIVER"`
	DatabaseURL  string        `envconfig:"DATABASE_URL"`
	SQLitePath   string        `envconfig:"SQLITE_PATH" default:"./data/alien.db"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	ClientOrigin     string        `envconfig:"CLIENT_ORIGIN" default:"*"`
	ChatPersistence  string        `envconfig:"CHAT_PERSISTENCE" default:"best_effort"`
	ChatCooldown     time.Duration `envconfig:"CHAT_COOLDOWN" default:"5s"`
	ChatHistoryLimit int           `envconfig:"CHAT_HISTORY_LIMIT" default:"50"`
	WSSendBuffer     int           `envconfig:"WS_SEND_BUFFER" default:"64"`

	HTTPRate  float64 `envconfig:"HTTP_RATE" default:"5"`
	HTTPBurst int     `envconfig:"HTTP_BURST" default:"10"`

	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminJWTSecret    string        `envconfig:"ADMIN_JWT_SECRET"`
	AdminTokenTTL     time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"12h"`

	StaticDir       string        `envconfig:"STATIC_DIR"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.StoreDriver = cfg.Driver()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Driver resolves the effective store driver.
func (c Config) Driver() string {
	d := strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if d != "" {
		return d
	}
	if c.DatabaseURL != "" {
		return DriverPostgres
	}
	return DriverSQLite
}

// AdminEnabled reports whether the admin routes can authenticate anyone.
func (c Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.AdminJWTSecret != ""
}

// Addr is the listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	switch c.Driver() {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.ChatPersistence {
	case "best_effort", "durable":
	default:
		errs = append(errs, fmt.Errorf("CHAT_PERSISTENCE must be best_effort or durable, got %q", c.ChatPersistence))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.ChatCooldown <= 0 {
		errs = append(errs, errors.New("CHAT_COOLDOWN must be positive"))
	}
	if c.ChatHistoryLimit <= 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_LIMIT must be positive"))
	}
	if c.WSSendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be positive"))
	}
	if c.HTTPRate <= 0 || c.HTTPBurst <= 0 {
		errs = append(errs, errors.New("HTTP_RATE and HTTP_BURST must be positive"))
	}
	if (c.AdminPasswordHash == "") != (c.AdminJWTSecret == "") {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH and ADMIN_JWT_SECRET must be set together"))
	}
	if c.AdminTokenTTL <= 0 {
		errs = append(errs, errors.New("ADMIN_TOKEN_TTL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
