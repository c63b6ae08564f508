package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/transaction"
	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db        *sql.DB
	ownsDB    bool   // Track if we created the DB connection (for Close())
	tableName string // Configurable table name (default: "lms-transactions")
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(ctx context.Context, connectionString string, poolConfig config.PostgresPoolConfig, tableName string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		// Close() error is not actionable here and would obscure the ping failure
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := newPostgresStore(db, tableName)
	store.ownsDB = true
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing connection pool.
// The pool is not closed by Close().
func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB, tableName string) (*PostgresStore, error) {
	store := newPostgresStore(db, tableName)
	if err := store.createTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newPostgresStore(db *sql.DB, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = config.DefaultTableName
	}
	return &PostgresStore{db: db, tableName: tableName}
}

// table returns the quoted table identifier; the default name contains a hyphen.
func (s *PostgresStore) table() string {
	return pq.QuoteIdentifier(s.tableName)
}

// createTable creates the transactions table if it doesn't exist.
func (s *PostgresStore) createTable(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			transaction_id      TEXT PRIMARY KEY,
			tenant_id           TEXT NOT NULL DEFAULT '',
			razorpay_payment_id TEXT NOT NULL,
			razorpay_order_id   TEXT NOT NULL,
			status              TEXT NOT NULL CHECK (status IN ('success', 'failed')),
			amount              NUMERIC,
			currency            TEXT NOT NULL,
			user_id             TEXT,
			course_id           TEXT,
			email               TEXT,
			phone               TEXT,
			razorpay_signature  TEXT,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		)
	`, s.table())

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table %s: %w", s.tableName, err)
	}
	return nil
}

// CreateTransaction inserts rec; the primary key turns a second insert into a no-op
// which is reported as ErrDuplicate.
func (s *PostgresStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	createdAt, err := time.Parse(transaction.TimestampLayout, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(transaction.TimestampLayout, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			transaction_id, tenant_id, razorpay_payment_id, razorpay_order_id, status,
			amount, currency, user_id, course_id, email, phone, razorpay_signature,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (transaction_id) DO NOTHING
	`, s.table())

	result, err := s.db.ExecContext(ctx, query,
		rec.TransactionID,
		rec.TenantID,
		rec.PaymentID,
		rec.OrderID,
		string(rec.Status),
		amountParam(rec.Amount),
		rec.Currency,
		nullString(rec.UserID),
		nullString(rec.CourseID),
		nullString(rec.Email),
		nullString(rec.Phone),
		nullString(rec.Signature),
		createdAt.UTC(),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", rec.TransactionID, err)
	}

	// RowsAffected = 0 means the conflict clause fired
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetTransaction loads a record by primary key.
func (s *PostgresStore) GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT transaction_id, tenant_id, razorpay_payment_id, razorpay_order_id, status,
		       amount::TEXT, currency, user_id, course_id, email, phone, razorpay_signature,
		       created_at, updated_at
		FROM %s
		WHERE transaction_id = $1
	`, s.table())

	var (
		rec                            transaction.Record
		status                         string
		amount                         sql.NullString
		userID, courseID, email, phone sql.NullString
		signature                      sql.NullString
		createdAt, updatedAt           time.Time
	)
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(
		&rec.TransactionID,
		&rec.TenantID,
		&rec.PaymentID,
		&rec.OrderID,
		&status,
		&amount,
		&rec.Currency,
		&userID,
		&courseID,
		&email,
		&phone,
		&signature,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return transaction.Record{}, ErrNotFound
	}
	if err != nil {
		return transaction.Record{}, fmt.Errorf("select transaction %s: %w", transactionID, err)
	}

	rec.Status = transaction.Status(status)
	if amount.Valid {
		parsed, err := transaction.ParseAmount(amount.String)
		if err != nil {
			return transaction.Record{}, fmt.Errorf("transaction %s: %w", transactionID, err)
		}
		rec.Amount = &parsed
	}
	rec.UserID = userID.String
	rec.CourseID = courseID.String
	rec.Email = email.String
	rec.Phone = phone.String
	rec.Signature = signature.String
	rec.CreatedAt = transaction.FormatTimestamp(createdAt)
	rec.UpdatedAt = transaction.FormatTimestamp(updatedAt)
	return rec, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// amountParam passes NUMERIC values as text so no float conversion happens.
func amountParam(a *transaction.Amount) interface{} {
	if a == nil {
		return nil
	}
	return a.Decimal.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
