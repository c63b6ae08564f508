package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CedrosPay/txupdate/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SharedPool owns the PostgreSQL connection pool used by the postgres store
// and the HTTP health check.
type SharedPool struct {
	db *sql.DB
}

// NewSharedPool opens the pool, verifies connectivity and applies pool tuning.
func NewSharedPool(ctx context.Context, connectionString string, poolConfig config.PostgresPoolConfig) (*SharedPool, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	return &SharedPool{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (p *SharedPool) DB() *sql.DB {
	return p.db
}

// Ping checks that a connection can still be acquired.
func (p *SharedPool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Stats exposes pool statistics for diagnostics.
func (p *SharedPool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close closes the shared connection pool. Only the owner should call it.
func (p *SharedPool) Close() error {
	return p.db.Close()
}
