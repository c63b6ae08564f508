package storage

import (
	"context"
	"errors"

	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// Store operation and result labels.
const (
	OpCreateTransaction = "create_transaction"
	OpGetTransaction    = "get_transaction"

	ResultOK          = "ok"
	ResultDuplicate   = "duplicate"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// instrumentedStore records latency and outcome of every store call.
type instrumentedStore struct {
	Store
	backend string
	metrics *metrics.Metrics
}

// WithMetrics wraps store with Prometheus instrumentation labelled by backend.
func WithMetrics(store Store, backend string, m *metrics.Metrics) Store {
	if m == nil {
		return store
	}
	return &instrumentedStore{Store: store, backend: backend, metrics: m}
}

func (s *instrumentedStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	done := metrics.MeasureStoreOperation(s.metrics, OpCreateTransaction, s.backend)
	err := s.Store.CreateTransaction(ctx, rec)
	done(resultLabel(err))
	return err
}

func (s *instrumentedStore) GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error) {
	done := metrics.MeasureStoreOperation(s.metrics, OpGetTransaction, s.backend)
	rec, err := s.Store.GetTransaction(ctx, transactionID)
	done(resultLabel(err))
	return rec, err
}

// resultLabel maps a store error to a bounded metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrDuplicate):
		return ResultDuplicate
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, ErrUnavailable):
		return ResultUnavailable
	default:
		return ResultError
	}
}
