// Package config provides configuration management for the advisor service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the advisor service.
type Config struct {
	Server    ServerConfig
	StateDB   StateDBConfig
	Targets   TargetPoolConfig
	Jobs      JobsConfig
	Auth      AuthConfig
	Explainer ExplainerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StateDBConfig holds the PostgreSQL configuration for the advisor's own state store.
type StateDBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TargetPoolConfig sizes the connection pools opened against each monitored database.
// The write pool is deliberately smaller than the read pool so that concurrent
// mutating commands stay bounded independently of analysis load.
type TargetPoolConfig struct {
	ReadMaxConns  int32
	WriteMaxConns int32
	ConnTimeout   time.Duration
}

// JobsConfig holds background job orchestration configuration.
type JobsConfig struct {
	MaxConcurrent int64
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the API key accepted by the token endpoint.
	// When empty, authentication is disabled (local single-user mode).
	APIKeyHash      string
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	ClockSkewLeeway time.Duration
}

// ExplainerConfig holds the OpenAI-compatible explainer configuration.
// An empty APIKey disables the explainer entirely.
type ExplainerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		StateDB: StateDBConfig{
			Host:            getEnv("STATE_DB_HOST", "localhost"),
			Port:            getEnvAsInt("STATE_DB_PORT", 5432),
			User:            getEnv("STATE_DB_USER", "pgsteward"),
			Password:        getEnv("STATE_DB_PASSWORD", "pgsteward"),
			Database:        getEnv("STATE_DB_NAME", "pgsteward"),
			SSLMode:         getEnv("STATE_DB_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvAsInt("STATE_DB_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("STATE_DB_MIN_CONNS", 2)),
			MaxConnLifetime: getEnvAsDuration("STATE_DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvAsDuration("STATE_DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Targets: TargetPoolConfig{
			ReadMaxConns:  int32(getEnvAsInt("TARGET_READ_MAX_CONNS", 5)),
			WriteMaxConns: int32(getEnvAsInt("TARGET_WRITE_MAX_CONNS", 2)),
			ConnTimeout:   getEnvAsDuration("TARGET_CONN_TIMEOUT", 10*time.Second),
		},
		Jobs: JobsConfig{
			MaxConcurrent: int64(getEnvAsInt("JOBS_MAX_CONCURRENT", 4)),
		},
		Auth: AuthConfig{
			APIKeyHash:      getEnv("AUTH_API_KEY_HASH", ""),
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "change-me-in-production-this-is-not-secure"),
			Issuer:          getEnv("AUTH_JWT_ISSUER", "pgsteward"),
			AccessTokenTTL:  getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", 1*time.Hour),
			ClockSkewLeeway: getEnvAsDuration("AUTH_CLOCK_SKEW_LEEWAY", 30*time.Second),
		},
		Explainer: ExplainerConfig{
			APIKey:  getEnv("EXPLAINER_API_KEY", ""),
			BaseURL: getEnv("EXPLAINER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:   getEnv("EXPLAINER_MODEL", "anthropic/claude-3.5-haiku"),
			Timeout: getEnvAsDuration("EXPLAINER_TIMEOUT", 30*time.Second),
		},
	}
}

// DSN returns the PostgreSQL connection string for the state store.
func (c *StateDBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" +
		strconv.Itoa(c.Port) + "/" + c.Database + "?sslmode=" + c.SSLMode
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the value of an environment variable as an integer or a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration returns the value of an environment variable as a duration or a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
