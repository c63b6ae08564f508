package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/txupdate/internal/circuitbreaker"
	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/logger"
	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/ratelimit"
	"github.com/CedrosPay/txupdate/internal/storage"
	"github.com/CedrosPay/txupdate/internal/txupdate"
)

var (
	serverStartTime = time.Now()
)

// maxBodyBytes bounds a notification body.
const maxBodyBytes = 1 << 20

// Deps are the components the HTTP transport exposes.
type Deps struct {
	Transactions   *txupdate.Handler
	Store          storage.Store
	Breakers       *circuitbreaker.Manager
	HealthCheck    func(ctx context.Context) error // optional backend ping
	MetricsHandler http.Handler                    // optional, usually promhttp
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Server wires handlers, middleware, and dependencies.
type Server struct {
	httpServer *http.Server
}

type handlers struct {
	cfg          *config.Config
	transactions *txupdate.Handler
	store        storage.Store
	breakers     *circuitbreaker.Manager
	healthCheck  func(ctx context.Context) error
	logger       zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, deps)

	return s
}

func newHandlers(cfg *config.Config, deps Deps) handlers {
	return handlers{
		cfg:          cfg,
		transactions: deps.Transactions,
		store:        deps.Store,
		breakers:     deps.Breakers,
		healthCheck:  deps.HealthCheck,
		logger:       deps.Logger,
	}
}

// ConfigureRouter attaches the transaction routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, deps Deps) {
	if router == nil {
		return
	}

	handler := newHandlers(cfg, deps)

	// Security headers middleware (applied first for all responses)
	router.Use(securityHeadersMiddleware)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.Recoverer)

	adminKey := cfg.Server.AdminAPIKey

	rateLimitCfg := ratelimit.FromConfig(cfg.RateLimit, deps.Metrics)
	if deps.Transactions != nil {
		rateLimitCfg.ResponseHeaders = deps.Transactions.CORSHeaders()
	}
	rateLimitCfg.Exempt = func(r *http.Request) bool {
		return adminKey != "" && validAdminKey(r, adminKey)
	}
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	prefix := cfg.Server.RoutePrefix

	// Lightweight endpoints with 5s timeout (health checks, metrics)
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get(prefix+"/healthz", handler.health)
		if deps.MetricsHandler != nil {
			// Protected by optional admin API key
			r.With(adminAuth(adminKey, false)).Handle(prefix+"/metrics", deps.MetricsHandler)
		}
	})

	router.Group(func(r chi.Router) {
		r.Post(prefix+"/transactions", handler.updateTransaction)
		r.Options(prefix+"/transactions", handler.updateTransaction)

		// Record lookup exposes PII and is only served when an admin key is configured
		if adminKey != "" {
			r.With(adminAuth(adminKey, true)).Get(prefix+"/transactions/{transactionID}", handler.getTransaction)
		}
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
