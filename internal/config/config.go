package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Session store backends
const (
	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	// Helpdesk API configuration
	API APIConfig

	// Client-side synchronization
	Sync SyncConfig

	// Session persistence
	Session SessionConfig

	// Redis configuration, used by the redis session store
	Redis RedisConfig

	// Local dashboard server configuration
	Dashboard DashboardConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// APIConfig holds the remote helpdesk endpoints and client limits
type APIConfig struct {
	URL                   string
	PushURL               string
	Timeout               time.Duration
	RateLimitRPS          float64
	RateLimitBurst        int
	PushReconnectInterval time.Duration
}

// SyncConfig holds polling and reconcile timings
type SyncConfig struct {
	PollFallbackInterval  time.Duration
	PollHeartbeatInterval time.Duration
	ReloadDebounce        time.Duration
}

// SessionConfig selects where the login session is kept
type SessionConfig struct {
	Store   string // file, redis
	File    string
	Profile string
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DashboardConfig holds HTTP server configuration for `serve`
type DashboardConfig struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := LoadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads .env when present and builds the configuration without
// validating it, so command-line flags can still override it.
func LoadEnv() *Config {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Could not read .env file: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment without
// validating it.
func FromEnv() *Config {
	cfg := &Config{
		API: APIConfig{
			URL:                   getEnvOrDefault("HELPDESK_API_URL", "http://localhost:8000"),
			PushURL:               os.Getenv("HELPDESK_PUSH_URL"),
			Timeout:               getDurationOrDefault("API_TIMEOUT", 10*time.Second),
			RateLimitRPS:          getFloatOrDefault("API_RATE_LIMIT_RPS", 10),
			RateLimitBurst:        getIntOrDefault("API_RATE_LIMIT_BURST", 20),
			PushReconnectInterval: getDurationOrDefault("PUSH_RECONNECT_INTERVAL", 5*time.Second),
		},
		Sync: SyncConfig{
			PollFallbackInterval:  getDurationOrDefault("POLL_FALLBACK_INTERVAL", 15*time.Second),
			PollHeartbeatInterval: getDurationOrDefault("POLL_HEARTBEAT_INTERVAL", 60*time.Second),
			ReloadDebounce:        getDurationOrDefault("RELOAD_DEBOUNCE", 500*time.Millisecond),
		},
		Session: SessionConfig{
			Store:   getEnvOrDefault("SESSION_STORE", SessionStoreFile),
			File:    getEnvOrDefault("SESSION_FILE", defaultSessionFile()),
			Profile: getEnvOrDefault("SESSION_PROFILE", "default"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Dashboard: DashboardConfig{
			Addr:            getEnvOrDefault("DASHBOARD_ADDR", "127.0.0.1:8090"),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ReadTimeout:     getDurationOrDefault("DASHBOARD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("DASHBOARD_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationOrDefault("DASHBOARD_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimitRPS:    getFloatOrDefault("DASHBOARD_RATE_LIMIT_RPS", 20),
			RateLimitBurst:  getIntOrDefault("DASHBOARD_RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "helpdesk"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}
	return cfg
}

// BindFlags registers the command-line overrides. Flag defaults are the
// values already loaded, so only flags given on the command line change
// anything.
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.API.URL, "api-url", c.API.URL, "helpdesk API base URL")
	flags.StringVar(&c.API.PushURL, "push-url", c.API.PushURL, "push socket URL (derived from --api-url when empty)")
	flags.DurationVar(&c.API.Timeout, "api-timeout", c.API.Timeout, "timeout for a single API request")
	flags.DurationVar(&c.Sync.PollFallbackInterval, "poll-interval", c.Sync.PollFallbackInterval, "poll interval while the push socket is down")
	flags.DurationVar(&c.Sync.PollHeartbeatInterval, "poll-heartbeat", c.Sync.PollHeartbeatInterval, "poll interval while the push socket is up")
	flags.DurationVar(&c.Sync.ReloadDebounce, "reload-debounce", c.Sync.ReloadDebounce, "coalescing window for reconcile reloads")
	flags.StringVar(&c.Session.Store, "session-store", c.Session.Store, "session store backend (file|redis)")
	flags.StringVar(&c.Session.File, "session-file", c.Session.File, "session file for the file store")
	flags.StringVar(&c.Session.Profile, "profile", c.Session.Profile, "session profile name")
	flags.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "redis address for the redis session store")
	flags.StringVar(&c.Dashboard.Addr, "addr", c.Dashboard.Addr, "dashboard listen address")
	flags.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "log level (debug|info|warn|error)")
	flags.StringVar(&c.Logging.Format, "log-format", c.Logging.Format, "log format (json|text)")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.API.URL == "" {
		errs = append(errs, "HELPDESK_API_URL is required")
	} else if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "HELPDESK_API_URL must be an http(s) URL")
	}

	if c.API.PushURL != "" {
		if u, err := url.Parse(c.API.PushURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, "HELPDESK_PUSH_URL must be a ws(s) URL")
		}
	}

	switch c.Session.Store {
	case SessionStoreFile:
		if c.Session.File == "" {
			errs = append(errs, "SESSION_FILE is required for the file session store")
		}
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "REDIS_ADDR is required for the redis session store")
		}
	default:
		errs = append(errs, fmt.Sprintf("SESSION_STORE must be %q or %q", SessionStoreFile, SessionStoreRedis))
	}

	// Logical validations
	if c.Sync.PollFallbackInterval <= 0 {
		errs = append(errs, "POLL_FALLBACK_INTERVAL must be positive")
	}

	if c.Sync.PollHeartbeatInterval < c.Sync.PollFallbackInterval {
		errs = append(errs, "POLL_HEARTBEAT_INTERVAL cannot be shorter than POLL_FALLBACK_INTERVAL")
	}

	if c.Sync.ReloadDebounce < 0 {
		errs = append(errs, "RELOAD_DEBOUNCE cannot be negative")
	}

	if c.API.RateLimitRPS <= 0 || c.API.RateLimitBurst <= 0 {
		errs = append(errs, "API_RATE_LIMIT_RPS and API_RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// PushEndpoint returns the push socket URL, deriving ws(s)://host/ws from
// the API URL when none is configured.
func (c *Config) PushEndpoint() string {
	if c.API.PushURL != "" {
		return c.API.PushURL
	}
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Helper functions

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".helpdesk-session.json"
	}
	return filepath.Join(dir, "helpdesk", "session.json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{API: %s, Push: %s, Session: %s, Redis: %s, Environment: %s}",
		c.API.URL,
		c.PushEndpoint(),
		c.Session.Store,
		redactAddr(c.Redis.Addr, c.Redis.Password),
		c.App.Environment,
	)
}

// redactAddr hides the redis password when one is set
func redactAddr(addr, password string) string {
	if password == "" {
		return addr
	}
	return "[REDACTED]@" + addr
}
