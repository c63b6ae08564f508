package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate is returned when the conditional write finds an existing record
// with the same transaction_id. The existing record is left untouched.
var ErrDuplicate = errors.New("storage: transaction already exists")

// ErrUnavailable is returned when the store is short-circuited by the breaker.
var ErrUnavailable = errors.New("storage: unavailable")

// Store captures the persistence requirements for transaction records.
//
// CreateTransaction is a single conditional "create if absent" write keyed by
// TransactionID. Implementations must rely on the backend's atomic primitive
// (DynamoDB condition expression, Postgres primary key, MongoDB _id) rather than a
// read-then-write, so two concurrent writers of the same key get exactly one winner.
type Store interface {
	CreateTransaction(ctx context.Context, rec transaction.Record) error
	GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error)
	Close() error
}

// IsExpected reports whether err is a domain outcome rather than a backend failure.
func IsExpected(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound)
}

// StoreConfig holds storage backend configuration.
type StoreConfig struct {
	Backend         string // "dynamodb", "postgres", "mongodb" or "memory"
	TableName       string // table or collection name
	DynamoDB        config.DynamoDBConfig
	PostgresURL     string
	PostgresPool    config.PostgresPoolConfig
	MongoDBURL      string
	MongoDBDatabase string
}

// StoreConfigFrom converts application storage config.
func StoreConfigFrom(cfg config.StorageConfig) StoreConfig {
	return StoreConfig{
		Backend:         cfg.Backend,
		TableName:       cfg.TableName,
		DynamoDB:        cfg.DynamoDB,
		PostgresURL:     cfg.PostgresURL,
		PostgresPool:    cfg.PostgresPool,
		MongoDBURL:      cfg.MongoDBURL,
		MongoDBDatabase: cfg.MongoDBDatabase,
	}
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	return NewStoreWithDB(ctx, cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database pool.
// If sharedDB is provided (non-nil) for the postgres backend, it will be used instead of
// creating a new connection.
func NewStoreWithDB(ctx context.Context, cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	tableName := cfg.TableName
	if tableName == "" {
		tableName = config.DefaultTableName
	}

	switch cfg.Backend {
	case config.BackendDynamoDB, "":
		return NewDynamoDBStore(ctx, cfg.DynamoDB, tableName)
	case config.BackendPostgres:
		if sharedDB != nil {
			return NewPostgresStoreWithDB(ctx, sharedDB, tableName)
		}
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend requires postgres_url")
		}
		return NewPostgresStore(ctx, cfg.PostgresURL, cfg.PostgresPool, tableName)
	case config.BackendMongoDB:
		if cfg.MongoDBURL == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_url")
		}
		return NewMongoDBStore(ctx, cfg.MongoDBURL, cfg.MongoDBDatabase, tableName)
	case config.BackendMemory:
		// Records are lost on restart - development and tests only
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// MemoryStore is an in-process Store guarded by a mutex.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]transaction.Record // transactionID -> record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]transaction.Record),
	}
}

// CreateTransaction stores rec unless its TransactionID is already present.
func (m *MemoryStore) CreateTransaction(_ context.Context, rec transaction.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[rec.TransactionID]; exists {
		return ErrDuplicate
	}
	m.transactions[rec.TransactionID] = cloneRecord(rec)
	return nil
}

// GetTransaction returns a copy of the stored record.
func (m *MemoryStore) GetTransaction(_ context.Context, transactionID string) (transaction.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.transactions[transactionID]
	if !ok {
		return transaction.Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// cloneRecord copies the amount so callers cannot mutate stored state.
func cloneRecord(rec transaction.Record) transaction.Record {
	if rec.Amount != nil {
		amount := *rec.Amount
		rec.Amount = &amount
	}
	return rec
}
