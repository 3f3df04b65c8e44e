package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"ipedspulse/internal/config"
	apierrors "ipedspulse/internal/errors"
	"ipedspulse/internal/infrastructure"
	mw "ipedspulse/internal/middleware"
	"ipedspulse/internal/services"
	handlers "ipedspulse/internal/transport/http"
	ws "ipedspulse/internal/websocket"
	"ipedspulse/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Dataset       *services.DatasetService
	Health        *services.HealthService
	Hub           *ws.Hub
}

// NewApplication loads the dataset and wires every component. A nil cfg is
// loaded from the environment; a nil logger is built from cfg.Logging.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, apierrors.NewConfigError("failed to load configuration", err)
		}
		cfg = loaded
	}

	if logger == nil {
		l, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}
	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
	)

	paths := cfg.ResolvedPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	if err := a.initializeServices(ctx, paths.ResolveDatasetFile()); err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context, datasetPath string) error {
	ds, err := services.NewDatasetService(ctx, datasetPath, a.Config.Dataset, a.Logger, a.OTelProviders.Tracer, a.Metrics)
	if err != nil {
		return err
	}
	a.Dataset = ds

	a.Hub = ws.NewHub(ds, a.Config.WebSocket, a.Logger,
		ws.WithMetrics(a.Metrics),
		ws.WithOriginChecker(mw.OriginChecker(a.Config.Security.AllowedOrigins)),
	)
	a.Health = services.NewHealthService(contracts.Version, ds, a.Hub, a.Logger)
	return nil
}

// setupRouter builds the middleware chain:
// RequestID → RealIP → StripSlashes → OTel → Logger → Recoverer → SecureHeaders → CORS → RateLimit → Timeout.
// The websocket endpoint only gets the first three plus tracing.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(mw.RequestID)
	r.Use(mw.RealIP)
	r.Use(mw.StripSlashes)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.With(mw.WebSocketTraceMiddleware(a.Logger)).Handle(config.WebSocketEndpoint, a.Hub)

	r.Group(func(r chi.Router) {
		r.Use(mw.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(mw.StructuredLogger(a.Logger))
		r.Use(mw.Recoverer(a.Logger))

		secure := mw.DefaultSecureHeaders()
		secure.DevMode = a.Config.Logging.Development
		r.Use(secure.Handler)

		if a.Config.Security.EnableCORS {
			r.Use(mw.CORS(a.corsConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			limiter := mw.NewRateLimiter(a.Config.Security.RateLimit.RPS, a.Config.Security.RateLimit.Burst, a.Logger)
			r.Use(limiter.Handler)
		}
		r.Use(mw.Timeout(a.Config.Server.RequestTimeout))

		r.Route(config.APIBasePath, func(r chi.Router) {
			r.Use(apierrors.RecoveryMiddleware(errorHandler))

			r.Group(func(r chi.Router) {
				r.Use(mw.Compress(5, "application/json", "text/csv"))
				r.Mount("/dashboard", handlers.NewDashboardHandler(a.Dataset, a.Logger, errorHandler).Routes())
				r.Mount("/institutions", handlers.NewInstitutionHandler(a.Dataset, a.Logger, errorHandler).Routes())
				r.Mount("/simulator", handlers.NewSimulatorHandler(a.Dataset, a.Logger, errorHandler).Routes())
				r.Mount("/export", handlers.NewExportHandler(a.Dataset, a.Logger, errorHandler).Routes())
			})

			health := handlers.NewHealthHandler(a.Health, a.Logger)
			r.Mount(config.HealthEndpoint, health.Routes())
			r.Get("/version", health.Version)
		})
	})

	r.Handle(config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.Registry))

	a.Router = r
}

func (a *Application) corsConfig() mw.CORSConfig {
	return mw.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()
	info := a.Dataset.Info()
	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", a.Server.Addr),
		slog.String("dataset", info.Source),
		slog.Int("records", info.Records),
		slog.String("fingerprint", info.Fingerprint),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutdown requested")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// Stop drains HTTP requests, closes websocket clients and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.Hub.Stop()
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}
