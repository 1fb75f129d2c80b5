package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete gateway configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds token lifecycle and CSRF configuration
type AuthConfig struct {
	// SessionTokenTTL is the absolute lifetime of a session token (no sliding renewal)
	SessionTokenTTL time.Duration
	// OneTimeTokenTTL bounds the exchange window for URL-carried tokens
	OneTimeTokenTTL time.Duration
	// AllowedOrigins is the CSRF allow-list. Entries may be exact origins,
	// "*.domain" suffix patterns, or "*" to admit everything.
	AllowedOrigins []string
	// AdminAPIKey guards the one-time token issuance endpoint. Issuance is
	// disabled when empty.
	AdminAPIKey string
	// PortalBaseURL is the frontend URL one-time tokens are embedded into
	PortalBaseURL string
}

// RateLimitConfig holds per-tenant sliding window limits
type RateLimitConfig struct {
	// RequestsPerWindow is the ceiling within one trailing window
	RequestsPerWindow int
	// Window is the trailing interval requests are counted over
	Window time.Duration
	// CleanupInterval is how often idle tenants are swept from memory.
	// Per-call pruning keeps admission correct regardless of this value.
	CleanupInterval time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (no-op otherwise)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			SessionTokenTTL: getEnvAsDuration("SESSION_TOKEN_TTL", 4*time.Hour),
			OneTimeTokenTTL: getEnvAsDuration("ONE_TIME_TOKEN_TTL", 5*time.Minute),
			AllowedOrigins:  splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
			AdminAPIKey:     getEnv("ADMIN_API_KEY", ""),
			PortalBaseURL:   getEnv("PORTAL_BASE_URL", "http://localhost:3000/advisor"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvAsInt("RATE_LIMIT_REQUESTS", 60),
			Window:            getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			CleanupInterval:   getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Auth.SessionTokenTTL <= 0 {
		return fmt.Errorf("session token TTL must be positive")
	}
	if c.Auth.OneTimeTokenTTL <= 0 {
		return fmt.Errorf("one-time token TTL must be positive")
	}
	if c.IsProduction() && c.Auth.AdminAPIKey == "" {
		return fmt.Errorf("admin API key is required in production")
	}

	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit ceiling must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "advisor"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "advisor"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
