package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/CedrosPay/txupdate/internal/metrics"
)

var errBoom = errors.New("boom")
var errBenign = errors.New("benign")

func failing() (interface{}, error) { return nil, errBoom }
func benign() (interface{}, error) { return nil, errBenign }

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{Enabled: false})

	for i := 0; i < 20; i++ {
		if _, err := m.Execute(ServiceStore, failing); !errors.Is(err, errBoom) {
			t.Fatalf("expected pass-through error, got %v", err)
		}
	}
	if m.State(ServiceStore) != "disabled" {
		t.Errorf("expected disabled, got %s", m.State(ServiceStore))
	}
}

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.ConsecutiveFailures = 3
	cfg.Store.Timeout = time.Minute
	cfg.Metrics = metrics.New(prometheus.NewRegistry())
	m := NewManager(cfg)

	for i := 0; i < 3; i++ {
		m.Execute(ServiceStore, failing)
	}

	if m.State(ServiceStore) != "open" {
		t.Fatalf("expected open breaker, got %s", m.State(ServiceStore))
	}

	called := false
	_, err := m.Execute(ServiceStore, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open breaker must not invoke the function")
	}
	if got := promtest.ToFloat64(cfg.Metrics.BreakerTransitionsTotal.WithLabelValues("store", "open")); got != 1 {
		t.Errorf("expected one open transition, got %.0f", got)
	}
}

func TestManager_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.ConsecutiveFailures = 2
	cfg.IsSuccessful = func(err error) bool { return errors.Is(err, errBenign) }
	m := NewManager(cfg)

	for i := 0; i < 10; i++ {
		if _, err := m.Execute(ServiceStore, benign); !errors.Is(err, errBenign) {
			t.Fatalf("expected benign error to be returned, got %v", err)
		}
	}

	if m.State(ServiceStore) != "closed" {
		t.Errorf("expected closed breaker, got %s", m.State(ServiceStore))
	}
	if c := m.Counts(ServiceStore); c.TotalFailures != 0 || c.TotalSuccesses != 10 {
		t.Errorf("unexpected counts %+v", c)
	}
}

func TestManager_UnknownService(t *testing.T) {
	m := NewManager(DefaultConfig())
	if m.State(ServiceType("other")) != "not_configured" {
		t.Errorf("expected not_configured, got %s", m.State(ServiceType("other")))
	}
	if _, err := m.Execute(ServiceType("other"), failing); !errors.Is(err, errBoom) {
		t.Errorf("expected pass-through, got %v", err)
	}
}

func TestBreakerConfig_FailureRatio(t *testing.T) {
	bc := BreakerConfig{FailureRatio: 0.5, MinRequests: 4}

	tests := []struct {
		name   string
		counts Counts
		want   bool
	}{
		{"below min requests", Counts{Requests: 3, TotalFailures: 3}, false},
		{"ratio reached", Counts{Requests: 4, TotalFailures: 2}, true},
		{"ratio not reached", Counts{Requests: 10, TotalFailures: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bc.shouldTrip(tt.counts); got != tt.want {
				t.Errorf("shouldTrip(%+v) = %v, want %v", tt.counts, got, tt.want)
			}
		})
	}
}
