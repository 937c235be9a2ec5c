// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory  = "memory"
	StorageRedis   = "redis"
	StorageMariaDB = "mariadb"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Identity holds settings for the external Identity Service.
	Identity IdentityConfig

	// Storage selects where per-browser session data is persisted.
	Storage StorageConfig

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Browser holds per-browser session registry settings.
	Browser BrowserConfig

	// Queue holds RabbitMQ settings for capability-change events.
	Queue QueueConfig
}

// IdentityConfig points at the Identity Service that owns credentials.
type IdentityConfig struct {
	// URL is the base URL of the Identity Service (e.g. "https://id.example.com").
	URL string

	// Timeout bounds every call to the Identity Service.
	Timeout time.Duration
}

// StorageConfig selects the per-browser storage backend.
type StorageConfig struct {
	// Driver is one of "memory", "redis", "mariadb".
	Driver string

	// TTL is how long an idle browser's persisted token survives (redis only).
	TTL time.Duration

	// MigrationsPath is the directory holding SQL migrations (mariadb only).
	MigrationsPath string
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "switchboard").
	User string

	// Password is the MariaDB password (default: "switchboard").
	Password string

	// Name is the database name (default: "switchboard").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	// golang-migrate needs multi-statement support for migration files.
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// BrowserConfig controls the per-browser session registry.
type BrowserConfig struct {
	// CookieName is the first-party cookie identifying a browser.
	CookieName string

	// IdleTTL evicts a browser's in-memory session store after this long
	// without a request. Persisted storage is unaffected.
	IdleTTL time.Duration

	// SettleWait is how long a guard waits for initialization to settle
	// before rendering the loading placeholder.
	SettleWait time.Duration

	// MaxStores caps live in-memory stores; the least recently seen one is
	// evicted to make room. Zero means no cap.
	MaxStores int
}

// QueueConfig holds RabbitMQ settings. The consumer is disabled when URL is empty.
type QueueConfig struct {
	URL  string
	Name string
}

// Enabled reports whether the capability-change consumer should run.
func (q QueueConfig) Enabled() bool {
	return q.URL != ""
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present; real
// environment variables always win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("ignoring unreadable .env file", slog.Any("error", err))
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		Identity: IdentityConfig{
			URL:     strings.TrimRight(getEnv("IDENTITY_URL", "http://localhost:4000"), "/"),
			Timeout: getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},

		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
			TTL:            getEnvDuration("STORAGE_TTL", 720*time.Hour),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "switchboard"),
			Password:        getEnv("DB_PASSWORD", "switchboard"),
			Name:            getEnv("DB_NAME", "switchboard"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Browser: BrowserConfig{
			CookieName: getEnv("BROWSER_COOKIE", "switchboard_browser"),
			IdleTTL:    getEnvDuration("BROWSER_IDLE_TTL", 30*time.Minute),
			SettleWait: getEnvDuration("GUARD_SETTLE_WAIT", 2*time.Second),
			MaxStores:  getEnvInt("BROWSER_MAX_STORES", 10000),
		},

		Queue: QueueConfig{
			URL:  getEnv("AMQP_URL", ""),
			Name: getEnv("AMQP_QUEUE", "identity.capabilities_changed"),
		},
	}

	switch cfg.Storage.Driver {
	case StorageMemory, StorageRedis, StorageMariaDB:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be one of memory, redis, mariadb (got %q)", cfg.Storage.Driver)
	}

	if _, err := url.ParseRequestURI(cfg.Identity.URL); err != nil {
		return nil, fmt.Errorf("IDENTITY_URL is not a valid URL: %w", err)
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	if cfg.IsProduction() {
		if !strings.HasPrefix(cfg.Identity.URL, "https://") {
			return nil, fmt.Errorf("IDENTITY_URL must use https in production")
		}
		if _, ok := os.LookupEnv("BASE_URL"); !ok {
			return nil, fmt.Errorf("BASE_URL is required in production")
		}
		if cfg.Storage.Driver == StorageMemory {
			slog.Warn("STORAGE_DRIVER=memory in production: sessions will not survive restarts")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SlogLevel resolves LOG_LEVEL, falling back to debug in development and
// info everywhere else.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if c.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
