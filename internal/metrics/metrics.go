package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the transaction update service.
type Metrics struct {
	// Update handler metrics
	UpdatesTotal   *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	BreakerTransitionsTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txupdate_updates_total",
				Help: "Transaction update requests by outcome and reported payment status",
			},
			[]string{"outcome", "payment_status"},
		),
		UpdateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txupdate_update_duration_seconds",
				Help:    "Time taken to handle a transaction update (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"outcome"},
		),

		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txupdate_store_operations_total",
				Help: "Store operations by backend and result",
			},
			[]string{"operation", "backend", "result"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txupdate_store_operation_duration_seconds",
				Help:    "Store operation latency (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),

		BreakerTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txupdate_circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"breaker", "to"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txupdate_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type"},
		),
	}
}

// ObserveUpdate records one handled update request.
func (m *Metrics) ObserveUpdate(outcome, paymentStatus string, duration time.Duration) {
	if m == nil {
		return
	}
	if paymentStatus == "" {
		paymentStatus = "unknown"
	}
	m.UpdatesTotal.WithLabelValues(outcome, paymentStatus).Inc()
	m.UpdateDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveStoreOperation records a store call and its result ("ok", "duplicate", "not_found", "error").
func (m *Metrics) ObserveStoreOperation(operation, backend, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(operation, backend, result).Inc()
	m.StoreOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// ObserveBreakerTransition records a circuit breaker state change.
func (m *Metrics) ObserveBreakerTransition(breaker, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitionsTotal.WithLabelValues(breaker, to).Inc()
}

// ObserveRateLimit records a rejected request.
func (m *Metrics) ObserveRateLimit(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(limitType).Inc()
}
