package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nihalnihalani/EnrichedMMCP/internal/cache"
	"github.com/nihalnihalani/EnrichedMMCP/internal/config"
	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	customMiddleware "github.com/nihalnihalani/EnrichedMMCP/internal/middleware"
	"github.com/nihalnihalani/EnrichedMMCP/internal/scheduler"
	"github.com/nihalnihalani/EnrichedMMCP/internal/services"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/internal/tools"
	handlers "github.com/nihalnihalani/EnrichedMMCP/internal/transport/http"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts"
)

var (
	_ services.Recorder = (*infrastructure.BusinessMetrics)(nil)
	_ ingest.Recorder   = (*infrastructure.BusinessMetrics)(nil)
)

// BuildID is a short digest of the version and build time.
var BuildID = generateBuildID()

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(contracts.Version))
	h.Write([]byte(contracts.BuildTime))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	Store     storage.Store
	Cache     cache.AnalysisCache
	Market    *services.MarketService
	Health    *services.HealthService
	Loader    *ingest.Loader
	Scheduler *scheduler.Scheduler
	Sessions  *tools.SessionStore
}

// NewApplication loads configuration, initializes logging and wires the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apierrors.NewConfigError("load configuration", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. Resources opened before a failure are
// released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Application, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", contracts.Name),
		slog.String("version", contracts.Version),
		slog.String("build_id", BuildID))

	app := &Application{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.closeResources(context.Background())
		}
	}()

	app.OTelProviders, err = infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.Metrics, err = infrastructure.NewBusinessMetrics(app.OTelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	var err error
	a.Store, err = storage.Open(ctx, storage.Options{
		Driver:          a.Config.Database.Driver,
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	a.Cache, err = cache.New(ctx, cache.Options{
		Backend:       a.Config.Cache.Backend,
		TTL:           a.Config.Cache.TTL,
		RedisAddr:     a.Config.Cache.RedisAddr,
		RedisPassword: a.Config.Cache.RedisPassword,
		RedisDB:       a.Config.Cache.RedisDB,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	a.Market = services.NewMarketService(a.Store, a.Cache, a.Metrics, services.MarketConfig{
		TopK:           a.Config.Analysis.TopK,
		OverviewWindow: a.Config.Analysis.OverviewWindow,
	}, a.Logger)

	deps := map[string]services.Pinger{"store": a.Store}
	if a.Cache != nil {
		deps["cache"] = a.Cache
	}
	a.Health = services.NewHealthService(services.BuildInfo{
		Version:   contracts.Version,
		RepoURL:   contracts.RepoURL,
		BuildTime: contracts.BuildTime,
		BuildID:   BuildID,
	}, deps, a.Logger)

	a.Loader = ingest.NewLoader(a.Store, a.Metrics, a.Logger)

	if a.Config.Ingest.Schedule != "" {
		a.Scheduler, err = scheduler.New(scheduler.Config{
			Source:     a.Config.Ingest.Source,
			Schedule:   a.Config.Ingest.Schedule,
			RunOnStart: a.Config.Ingest.RunOnStart,
		}, a.Loader, a.Logger)
		if err != nil {
			return apierrors.NewConfigError("configure ingest scheduler", err).
				WithContext("schedule", a.Config.Ingest.Schedule)
		}
	}

	a.Sessions = tools.NewSessionStore(tools.SessionConfig{
		APIKey:    a.Config.LLM.APIKey,
		Model:     a.Config.LLM.Model,
		BaseURL:   a.Config.LLM.BaseURL,
		MaxRounds: a.Config.LLM.MaxRounds,

		IdleTimeout: a.Config.LLM.SessionIdleTimeout,
		MaxSessions: a.Config.LLM.MaxSessions,
	}, tools.NewDispatcher(a.Market, a.Logger), a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimit → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader, handlers.LLMKeyHeader},
			Logger:         a.Logger,
		}))
	}

	if limit := a.Config.Security.RateLimit; limit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(limit.RPS, limit.Burst, a.Logger).Handler)
	}

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, errorHandler))
	r.Handle("/", handlers.NewIndexHandler(contracts.Name, contracts.Version))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		marketHandler := handlers.NewMarketHandler(a.Market, handlers.MarketHandlerConfig{
			DefaultDays: a.Config.Analysis.DefaultDays,
			MaxDays:     a.Config.Analysis.MaxDays,
		}, a.Logger, errorHandler)
		api := marketHandler.Routes()

		healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
		api.Get("/health", healthHandler.HealthCheck)
		api.Get("/health/ready", healthHandler.ReadinessCheck)
		api.Get("/health/live", healthHandler.LivenessCheck)
		api.Get("/version", healthHandler.Version)

		r.Mount("/api", api)
	})

	// assistant rounds call out to the model, so they get the write timeout
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))

		toolsHandler := handlers.NewToolsHandler(
			tools.Definitions(market.Default()),
			tools.NewDispatcher(a.Market, a.Logger),
			a.Sessions,
			a.Logger,
			errorHandler,
		)
		r.Mount("/tools", toolsHandler.Routes())
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server and the ingest scheduler on ln until ctx is
// done or either fails, then shuts everything down.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.Scheduler != nil {
		g.Go(func() error { return a.Scheduler.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutting down application")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	err := g.Wait()

	// the scheduler has returned, so no load is still writing to the store
	closeCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	a.closeResources(closeCtx)

	a.Logger.Info("Application stopped")
	return err
}

func (a *Application) shutdownTimeout() time.Duration {
	if a.Config.Server.ShutdownTimeout > 0 {
		return a.Config.Server.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

// defaultShutdownTimeout bounds a graceful stop when the configuration leaves
// it unset.
const defaultShutdownTimeout = 30 * time.Second

func (a *Application) closeResources(ctx context.Context) {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing cache", slog.String("error", err.Error()))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing store", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}
