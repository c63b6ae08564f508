package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// Service settings use the TXU_ prefix; TRANSACTIONS_TABLE and CORS_ALLOWED_ORIGIN are
// also honoured because existing Lambda deployments set them.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "TXU_SERVER_ADDRESS")
	setIfEnv(&c.Server.RoutePrefix, "TXU_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminAPIKey, "TXU_ADMIN_API_KEY")
	setDurationIfEnv(&c.Server.ReadTimeout, "TXU_SERVER_READ_TIMEOUT")
	setDurationIfEnv(&c.Server.WriteTimeout, "TXU_SERVER_WRITE_TIMEOUT")

	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	// Logging config
	setIfEnv(&c.Logging.Level, "TXU_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "TXU_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "TXU_ENVIRONMENT")

	// CORS config (unprefixed name first so the prefixed one wins)
	setIfEnv(&c.CORS.AllowedOrigin, "CORS_ALLOWED_ORIGIN")
	setIfEnv(&c.CORS.AllowedOrigin, "TXU_CORS_ALLOWED_ORIGIN")

	// Storage config
	setIfEnv(&c.Storage.Backend, "TXU_STORAGE_BACKEND")
	setIfEnv(&c.Storage.TableName, "TRANSACTIONS_TABLE")
	setIfEnv(&c.Storage.TableName, "TXU_STORAGE_TABLE_NAME")
	setIfEnv(&c.Storage.DynamoDB.Region, "AWS_REGION")
	setIfEnv(&c.Storage.DynamoDB.Region, "TXU_DYNAMODB_REGION")
	setIfEnv(&c.Storage.DynamoDB.Endpoint, "TXU_DYNAMODB_ENDPOINT")
	setIfEnv(&c.Storage.DynamoDB.AccessKeyID, "TXU_DYNAMODB_ACCESS_KEY_ID")
	setIfEnv(&c.Storage.DynamoDB.SecretAccessKey, "TXU_DYNAMODB_SECRET_ACCESS_KEY")
	setIfEnv(&c.Storage.PostgresURL, "TXU_POSTGRES_URL")
	setIntIfEnv(&c.Storage.PostgresPool.MaxOpenConns, "TXU_POSTGRES_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Storage.PostgresPool.MaxIdleConns, "TXU_POSTGRES_MAX_IDLE_CONNS")
	setIfEnv(&c.Storage.MongoDBURL, "TXU_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "TXU_MONGODB_DATABASE")

	// Tenant config
	setBoolIfEnv(&c.Tenant.RequireHeader, "TXU_TENANT_REQUIRE_HEADER")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "TXU_RATE_LIMIT_GLOBAL_ENABLED")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "TXU_RATE_LIMIT_GLOBAL_LIMIT")
	setBoolIfEnv(&c.RateLimit.PerIPEnabled, "TXU_RATE_LIMIT_PER_IP_ENABLED")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "TXU_RATE_LIMIT_PER_IP_LIMIT")

	// Circuit breaker config
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "TXU_CIRCUIT_BREAKER_ENABLED")
	setDurationIfEnv(&c.CircuitBreaker.Store.Timeout, "TXU_CIRCUIT_BREAKER_TIMEOUT")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable, ignoring unparsable values.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
// Examples: "api" -> "/api", "/api/" -> "/api"
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
