package config

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// tableNamePattern matches names accepted by DynamoDB, which are also valid
// (quoted) Postgres identifiers and MongoDB collection names.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,255}$`)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	// Apply defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if strings.TrimSpace(c.CORS.AllowedOrigin) == "" {
		c.CORS.AllowedOrigin = DefaultAllowedOrigin
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendDynamoDB
	}
	c.Storage.TableName = strings.TrimSpace(c.Storage.TableName)
	if c.Storage.TableName == "" {
		c.Storage.TableName = DefaultTableName
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	switch c.Storage.Backend {
	case BackendDynamoDB:
		if c.Storage.DynamoDB.Endpoint != "" {
			if err := validateEndpoint(c.Storage.DynamoDB.Endpoint); err != nil {
				errs = append(errs, fmt.Sprintf("storage.dynamodb.endpoint: %v", err))
			}
		}
		if (c.Storage.DynamoDB.AccessKeyID == "") != (c.Storage.DynamoDB.SecretAccessKey == "") {
			errs = append(errs, "storage.dynamodb.access_key_id and secret_access_key must be set together")
		}
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, "storage.postgres_url is required when storage.backend is 'postgres'")
		}
	case BackendMongoDB:
		if c.Storage.MongoDBURL == "" {
			errs = append(errs, "storage.mongodb_url is required when storage.backend is 'mongodb'")
		}
		if c.Storage.MongoDBDatabase == "" {
			errs = append(errs, "storage.mongodb_database is required when storage.backend is 'mongodb'")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not supported (use dynamodb, postgres, mongodb or memory)", c.Storage.Backend))
	}

	if !tableNamePattern.MatchString(c.Storage.TableName) {
		errs = append(errs, fmt.Sprintf("storage.table_name %q must be 3-255 characters of letters, digits, '_', '-' or '.'", c.Storage.TableName))
	}

	if c.RateLimit.GlobalEnabled && c.RateLimit.GlobalLimit <= 0 {
		errs = append(errs, "rate_limit.global_limit must be positive when global limiting is enabled")
	}
	if c.RateLimit.PerIPEnabled && c.RateLimit.PerIPLimit <= 0 {
		errs = append(errs, "rate_limit.per_ip_limit must be positive when per-IP limiting is enabled")
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.Store.FailureRatio > 1 {
		errs = append(errs, "circuit_breaker.store.failure_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateEndpoint requires an absolute http(s) URL.
func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https":
	case "":
		return errors.New("endpoint missing scheme")
	default:
		return fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("endpoint missing host")
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25 // default
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5 // default
	}

	// Validate: maxIdle cannot exceed maxOpen
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute // default
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
