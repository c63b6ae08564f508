package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/CedrosPay/txupdate/internal/circuitbreaker"
	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// failingStore fails every write with err.
type failingStore struct {
	*MemoryStore
	err   error
	calls int
}

func (f *failingStore) CreateTransaction(context.Context, transaction.Record) error {
	f.calls++
	return f.err
}

func newTestBreakers(m *metrics.Metrics) *circuitbreaker.Manager {
	cfg := circuitbreaker.DefaultConfig()
	cfg.Store.ConsecutiveFailures = 2
	cfg.Store.Timeout = time.Minute
	cfg.IsSuccessful = IsExpected
	cfg.Metrics = m
	return circuitbreaker.NewManager(cfg)
}

func TestWithCircuitBreaker_DuplicatesDoNotTrip(t *testing.T) {
	breakers := newTestBreakers(nil)
	store := WithCircuitBreaker(NewMemoryStore(), breakers)
	ctx := context.Background()
	rec := newTestRecord(t, "pay_cb")

	if err := store.CreateTransaction(ctx, rec); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := store.CreateTransaction(ctx, rec); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("attempt %d: expected ErrDuplicate, got %v", i, err)
		}
	}
	if state := breakers.State(circuitbreaker.ServiceStore); state != "closed" {
		t.Errorf("duplicates tripped the breaker: %s", state)
	}

	if _, err := store.GetTransaction(ctx, "pay_cb"); err != nil {
		t.Errorf("GetTransaction through breaker: %v", err)
	}
}

func TestWithCircuitBreaker_OpenBreakerIsUnavailable(t *testing.T) {
	inner := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("timeout")}
	store := WithCircuitBreaker(inner, newTestBreakers(nil))
	ctx := context.Background()
	rec := newTestRecord(t, "pay_open")

	for i := 0; i < 2; i++ {
		_ = store.CreateTransaction(ctx, rec)
	}

	err := store.CreateTransaction(ctx, rec)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open breaker must not reach the store, calls = %d", inner.calls)
	}
}

func TestWithCircuitBreaker_NilManager(t *testing.T) {
	base := NewMemoryStore()
	if got := WithCircuitBreaker(base, nil); got != Store(base) {
		t.Error("nil manager should return the store unchanged")
	}
}

func TestWithMetrics_RecordsOutcome(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := WithMetrics(NewMemoryStore(), "memory", m)
	ctx := context.Background()
	rec := newTestRecord(t, "pay_metrics")

	_ = store.CreateTransaction(ctx, rec)
	_ = store.CreateTransaction(ctx, rec)
	_, _ = store.GetTransaction(ctx, "absent")

	checks := []struct {
		op, result string
	}{
		{OpCreateTransaction, ResultOK},
		{OpCreateTransaction, ResultDuplicate},
		{OpGetTransaction, ResultNotFound},
	}
	for _, c := range checks {
		got := promtest.ToFloat64(m.StoreOperationsTotal.WithLabelValues(c.op, "memory", c.result))
		if got != 1 {
			t.Errorf("%s/%s = %.0f, want 1", c.op, c.result, got)
		}
	}
}

func TestResultLabel(t *testing.T) {
	tests := map[string]error{
		ResultOK:          nil,
		ResultDuplicate:   ErrDuplicate,
		ResultNotFound:    ErrNotFound,
		ResultUnavailable: ErrUnavailable,
		ResultError:       errors.New("boom"),
	}
	for want, err := range tests {
		if got := resultLabel(err); got != want {
			t.Errorf("resultLabel(%v) = %s, want %s", err, got, want)
		}
	}
}
