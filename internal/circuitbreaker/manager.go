package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/metrics"
)

// ServiceType names a protected dependency.
type ServiceType string

// ServiceStore guards calls into the transaction store.
const ServiceStore ServiceType = "store"

var (
	// ErrOpenState is returned while the breaker rejects calls.
	ErrOpenState = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned once the half-open probe quota is used up.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Config configures the manager. A disabled manager calls through directly.
type Config struct {
	Enabled bool
	Store   BreakerConfig

	// IsSuccessful marks errors that are expected outcomes rather than
	// dependency failures, such as a duplicate-key rejection.
	IsSuccessful func(err error) bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// BreakerConfig holds the gobreaker thresholds for one dependency.
type BreakerConfig struct {
	MaxRequests uint32        // probes allowed while half-open
	Interval    time.Duration // closed-state count reset period; 0 never resets
	Timeout     time.Duration // open duration before going half-open

	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32 // requests seen before FailureRatio applies
}

// Counts mirrors gobreaker.Counts for callers that report breaker health.
type Counts = gobreaker.Counts

// Manager owns one circuit breaker per protected dependency.
type Manager struct {
	cfg      Config
	breakers map[ServiceType]*gobreaker.CircuitBreaker
}

// DefaultConfig trips after 5 consecutive failures, or a 50% failure ratio
// over at least 10 requests, and probes again after 30s.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Store: BreakerConfig{
			MaxRequests:         3,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
		Logger: zerolog.Nop(),
	}
}

// NewManagerFromConfig maps the file/env configuration onto Config.
func NewManagerFromConfig(cfg config.CircuitBreakerConfig, isSuccessful func(error) bool, log zerolog.Logger, m *metrics.Metrics) *Manager {
	store := cfg.Store
	return NewManager(Config{
		Enabled: cfg.Enabled,
		Store: BreakerConfig{
			MaxRequests:         store.MaxRequests,
			Interval:            store.Interval.Duration,
			Timeout:             store.Timeout.Duration,
			ConsecutiveFailures: store.ConsecutiveFailures,
			FailureRatio:        store.FailureRatio,
			MinRequests:         store.MinRequests,
		},
		IsSuccessful: isSuccessful,
		Logger:       log,
		Metrics:      m,
	})
}

// NewManager builds the breakers described by cfg.
func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, breakers: map[ServiceType]*gobreaker.CircuitBreaker{}}
	if cfg.Enabled {
		m.breakers[ServiceStore] = gobreaker.NewCircuitBreaker(m.settings(ServiceStore, cfg.Store))
	}
	return m
}

// Execute runs fn through the service's breaker, or directly when there is none.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	cb, ok := m.breaker(service)
	if !ok {
		return fn()
	}
	return cb.Execute(fn)
}

// State reports "closed", "half-open" or "open", plus "disabled" when the
// manager is off and "not_configured" for an unknown service.
func (m *Manager) State(service ServiceType) string {
	if !m.cfg.Enabled {
		return "disabled"
	}
	cb, ok := m.breaker(service)
	if !ok {
		return "not_configured"
	}
	return cb.State().String()
}

// Counts returns the current window's counters (zero without a breaker).
func (m *Manager) Counts(service ServiceType) Counts {
	if cb, ok := m.breaker(service); ok {
		return cb.Counts()
	}
	return Counts{}
}

func (m *Manager) breaker(service ServiceType) (*gobreaker.CircuitBreaker, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	cb, ok := m.breakers[service]
	return cb, ok
}

func (m *Manager) settings(service ServiceType, bc BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:         string(service),
		MaxRequests:  bc.MaxRequests,
		Interval:     bc.Interval,
		Timeout:      bc.Timeout,
		ReadyToTrip:  bc.shouldTrip,
		IsSuccessful: m.isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.cfg.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit_breaker.state_changed")
			m.cfg.Metrics.ObserveBreakerTransition(name, to.String())
		},
	}
}

func (m *Manager) isSuccessful(err error) bool {
	return err == nil || (m.cfg.IsSuccessful != nil && m.cfg.IsSuccessful(err))
}

func (bc BreakerConfig) shouldTrip(c gobreaker.Counts) bool {
	if bc.ConsecutiveFailures > 0 && c.ConsecutiveFailures >= bc.ConsecutiveFailures {
		return true
	}
	if bc.FailureRatio <= 0 || bc.MinRequests == 0 || c.Requests < bc.MinRequests {
		return false
	}
	return float64(c.TotalFailures)/float64(c.Requests) >= bc.FailureRatio
}
