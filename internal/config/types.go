package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Storage backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendMemory   = "memory"
)

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	CORS           CORSConfig           `yaml:"cors"`
	Storage        StorageConfig        `yaml:"storage"`
	Tenant         TenantConfig         `yaml:"tenant"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration (standalone mode only).
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
	RoutePrefix  string   `yaml:"route_prefix"`  // Optional prefix for all routes (e.g., "/api")
	AdminAPIKey  string   `yaml:"admin_api_key"` // Guards record lookup and /metrics; empty disables lookup and leaves /metrics open
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Format      string `yaml:"format"`      // json, console
	Environment string `yaml:"environment"` // production, staging, development
}

// CORSConfig controls the fixed CORS headers attached to every response.
type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // Maximum number of open connections (default: 25)
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // Maximum number of idle connections (default: 5)
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // Maximum lifetime of connections (default: 5m)
}

// DynamoDBConfig holds AWS settings for the DynamoDB backend.
// Empty credentials fall back to the default AWS credential chain.
type DynamoDBConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // e.g. http://localhost:8000 for DynamoDB Local
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Backend         string             `yaml:"backend"`          // "dynamodb", "postgres", "mongodb", or "memory"
	TableName       string             `yaml:"table_name"`       // Table (DynamoDB/Postgres) or collection (MongoDB) name
	DynamoDB        DynamoDBConfig     `yaml:"dynamodb"`         // DynamoDB client settings
	PostgresURL     string             `yaml:"postgres_url"`     // PostgreSQL connection string
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`    // PostgreSQL connection pool settings
	MongoDBURL      string             `yaml:"mongodb_url"`      // MongoDB connection string
	MongoDBDatabase string             `yaml:"mongodb_database"` // MongoDB database name
}

// TenantConfig controls X-Tenant-Id handling.
type TenantConfig struct {
	RequireHeader bool `yaml:"require_header"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP server.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`
	PerIPEnabled  bool     `yaml:"per_ip_enabled"`
	PerIPLimit    int      `yaml:"per_ip_limit"`
	PerIPWindow   Duration `yaml:"per_ip_window"`
}

// CircuitBreakerConfig holds circuit breaker configuration for the store.
type CircuitBreakerConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Store   BreakerServiceConfig `yaml:"store"`
}

// BreakerServiceConfig configures a circuit breaker for a specific dependency.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Requests allowed in half-open state
	Interval            Duration `yaml:"interval"`             // Period to clear counts in closed state
	Timeout             Duration `yaml:"timeout"`              // Open state duration before half-open
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Trip after N consecutive failures
	FailureRatio        float64  `yaml:"failure_ratio"`        // Trip when failure ratio exceeds this
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before ratio applies
}
