package txservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/txupdate/internal/circuitbreaker"
	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/dbpool"
	"github.com/CedrosPay/txupdate/internal/gateway"
	"github.com/CedrosPay/txupdate/internal/httpserver"
	"github.com/CedrosPay/txupdate/internal/lifecycle"
	"github.com/CedrosPay/txupdate/internal/logger"
	"github.com/CedrosPay/txupdate/internal/metrics"
	"github.com/CedrosPay/txupdate/internal/storage"
	"github.com/CedrosPay/txupdate/internal/txupdate"
)

// App wires the transaction update components for the Lambda and HTTP entry points.
type App struct {
	Config   *config.Config
	Store    storage.Store // decorated store used by the handler
	Handler  *txupdate.Handler
	Breakers *circuitbreaker.Manager
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	registry        *prometheus.Registry
	healthCheck     func(context.Context) error
	resourceManager *lifecycle.Manager
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store   storage.Store
	service string
	version string
}

// WithStore sets a custom storage backend. The caller keeps ownership of it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithService sets the service name attached to every log line.
func WithService(name string) Option {
	return func(o *options) {
		o.service = name
	}
}

// WithVersion sets the build version attached to every log line.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// NewApp assembles the store, breaker, metrics and handler.
func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("txservice: config required")
	}

	optState := options{service: "txupdate"}
	for _, opt := range opts {
		opt(&optState)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     optState.service,
		Version:     optState.version,
		Environment: cfg.Logging.Environment,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := metrics.New(registry)

	app := &App{
		Config:          cfg,
		Metrics:         metricsCollector,
		Logger:          appLogger,
		registry:        registry,
		resourceManager: lifecycle.NewManager(appLogger),
	}

	base := optState.store
	if base == nil {
		var err error
		base, err = app.openStore(ctx)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.resourceManager.Register("storage", base)
	}

	app.Breakers = circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker, storage.IsExpected, appLogger, metricsCollector)
	app.Store = storage.WithMetrics(
		storage.WithCircuitBreaker(base, app.Breakers),
		cfg.Storage.Backend,
		metricsCollector,
	)

	app.Handler = txupdate.New(app.Store,
		txupdate.WithAllowedOrigin(cfg.CORS.AllowedOrigin),
		txupdate.WithLogger(appLogger),
		txupdate.WithMetrics(metricsCollector),
		txupdate.WithTenantHeaderRequired(cfg.Tenant.RequireHeader),
	)

	appLogger.Info().
		Str("backend", cfg.Storage.Backend).
		Str("table", cfg.Storage.TableName).
		Bool("circuit_breaker", cfg.CircuitBreaker.Enabled).
		Bool("tenant_header_required", cfg.Tenant.RequireHeader).
		Msg("app.initialized")

	return app, nil
}

// openStore builds the configured backend. Postgres goes through the shared pool
// so the health check can ping it.
func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	storeCfg := storage.StoreConfigFrom(a.Config.Storage)

	if storeCfg.Backend != config.BackendPostgres {
		store, err := storage.NewStore(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("init %s store: %w", storeCfg.Backend, err)
		}
		return store, nil
	}

	pool, err := dbpool.NewSharedPool(ctx, storeCfg.PostgresURL, storeCfg.PostgresPool)
	if err != nil {
		return nil, err
	}
	a.resourceManager.Register("postgres-pool", pool)
	a.healthCheck = pool.Ping

	store, err := storage.NewStoreWithDB(ctx, storeCfg, pool.DB())
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	return store, nil
}

// LambdaHandler returns the function to register with the Lambda runtime.
func (a *App) LambdaHandler() gateway.LambdaHandler {
	return gateway.NewLambdaHandler(a.Handler, a.Logger)
}

// MetricsHandler serves the app's Prometheus registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// HTTPServer builds the standalone HTTP server.
func (a *App) HTTPServer() *httpserver.Server {
	return httpserver.New(a.Config, httpserver.Deps{
		Transactions:   a.Handler,
		Store:          a.Store,
		Breakers:       a.Breakers,
		HealthCheck:    a.healthCheck,
		MetricsHandler: a.MetricsHandler(),
		Metrics:        a.Metrics,
		Logger:         a.Logger,
	})
}

// Close releases resources owned by the app (store, pool).
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the service.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
