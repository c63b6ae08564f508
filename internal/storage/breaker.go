package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/CedrosPay/txupdate/internal/circuitbreaker"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// breakerStore short-circuits store calls while the store breaker is open.
type breakerStore struct {
	Store
	breakers *circuitbreaker.Manager
}

// WithCircuitBreaker wraps store so that calls go through the store breaker.
// ErrDuplicate and ErrNotFound should be classified as successes by the manager
// (see IsExpected), otherwise duplicate submissions would trip the breaker.
func WithCircuitBreaker(store Store, breakers *circuitbreaker.Manager) Store {
	if breakers == nil {
		return store
	}
	return &breakerStore{Store: store, breakers: breakers}
}

func (b *breakerStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	_, err := b.breakers.Execute(circuitbreaker.ServiceStore, func() (interface{}, error) {
		return nil, b.Store.CreateTransaction(ctx, rec)
	})
	return breakerError(err)
}

func (b *breakerStore) GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error) {
	out, err := b.breakers.Execute(circuitbreaker.ServiceStore, func() (interface{}, error) {
		return b.Store.GetTransaction(ctx, transactionID)
	})
	if err != nil {
		return transaction.Record{}, breakerError(err)
	}
	return out.(transaction.Record), nil
}

func breakerError(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
