package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/CedrosPay/txupdate/internal/config"
	apperrors "github.com/CedrosPay/txupdate/internal/errors"
	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/pkg/responders"
)

// Limit type labels.
const (
	LimitGlobal = "global"
	LimitPerIP  = "per_ip"
)

// Config holds rate limiting configuration.
type Config struct {
	// Global rate limiting (across all callers)
	GlobalEnabled bool
	GlobalLimit   int           // requests per window
	GlobalWindow  time.Duration // time window

	// Per-IP rate limiting
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// ResponseHeaders are added to every 429 so browsers can read the rejection.
	ResponseHeaders map[string]string

	// Exempt skips limiting for matching requests (optional).
	Exempt func(*http.Request) bool

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default limits: 1000 req/min overall and 120 req/min per IP.
// Gateway retries must never be throttled in normal operation.
func DefaultConfig() Config {
	return Config{
		GlobalEnabled: true,
		GlobalLimit:   1000,
		GlobalWindow:  1 * time.Minute,

		PerIPEnabled: true,
		PerIPLimit:   120,
		PerIPWindow:  1 * time.Minute,
	}
}

// FromConfig converts application config.
func FromConfig(cfg config.RateLimitConfig, m *metrics.Metrics) Config {
	return Config{
		GlobalEnabled: cfg.GlobalEnabled,
		GlobalLimit:   cfg.GlobalLimit,
		GlobalWindow:  cfg.GlobalWindow.Duration,
		PerIPEnabled:  cfg.PerIPEnabled,
		PerIPLimit:    cfg.PerIPLimit,
		PerIPWindow:   cfg.PerIPWindow.Duration,
		Metrics:       m,
	}
}

// createRateLimitHandler builds the 429 response shared by both limiters.
func createRateLimitHandler(limitType string, window time.Duration, cfg Config) func(http.ResponseWriter, *http.Request) {
	windowSeconds := int(window.Seconds())
	message := "Rate limit exceeded. Please try again later."
	if limitType == LimitPerIP {
		message = "IP rate limit exceeded. Please try again later."
	}

	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Metrics.ObserveRateLimit(limitType)

		for k, v := range cfg.ResponseHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Retry-After", strconv.Itoa(windowSeconds))

		appErr := apperrors.New(apperrors.ErrCodeRateLimited, "Rate limit exceeded").
			With("details", message).
			With("retry_after_seconds", windowSeconds)
		responders.JSON(w, appErr.Status(), appErr.Body())
	}
}

// GlobalLimiter creates a global rate limiter middleware.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return passthrough
	}

	limiter := httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithLimitHandler(createRateLimitHandler(LimitGlobal, cfg.GlobalWindow, cfg)),
	)
	return withExemption(limiter, cfg.Exempt)
}

// IPLimiter creates a per-IP rate limiter middleware.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return passthrough
	}

	limiter := httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(createRateLimitHandler(LimitPerIP, cfg.PerIPWindow, cfg)),
	)
	return withExemption(limiter, cfg.Exempt)
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func withExemption(limiter func(http.Handler) http.Handler, exempt func(*http.Request) bool) func(http.Handler) http.Handler {
	if exempt == nil {
		return limiter
	}
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
