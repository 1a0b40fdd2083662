// Package main is the entry point for the Lavanda order wizard server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pressline/lavanda/internal/config"
	"github.com/pressline/lavanda/internal/coordinate"
	"github.com/pressline/lavanda/internal/observability"
	"github.com/pressline/lavanda/internal/pricing"
	"github.com/pressline/lavanda/internal/session"
	"github.com/pressline/lavanda/internal/transport"
	"github.com/pressline/lavanda/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "lavanda", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load and validate the price catalog.
	catalog, itemCount, err := loadCatalog(cfg.Catalog.File)
	if err != nil {
		logger.Error("catalog loading failed", zap.Error(err))
		return 1
	}
	metrics.SetCatalogItemsLoaded(float64(itemCount))
	logger.Info("catalog loaded",
		zap.String("file", cfg.Catalog.File),
		zap.String("checksum", catalog.Checksum()),
		zap.Int("items", itemCount),
	)

	reloadCatalog := func() error {
		def, err := pricing.LoadCatalogFile(cfg.Catalog.File)
		if err != nil {
			metrics.RecordCatalogReload("error")
			return model.NewConfigurationError(err.Error())
		}
		validator := pricing.NewValidator()
		if verrs := validator.Validate(def); len(verrs) > 0 {
			for _, ve := range verrs {
				logger.Error("catalog validation error", zap.String("error", ve.Error()))
			}
			metrics.RecordCatalogReload("error")
			return model.NewConfigurationError(
				fmt.Sprintf("catalog validation failed with %d errors", len(verrs)))
		}
		if cerr := catalog.Replace(def); cerr != nil {
			metrics.RecordCatalogReload("error")
			return cerr
		}
		metrics.RecordCatalogReload("success")
		metrics.SetCatalogItemsLoaded(float64(len(def.Items)))
		logger.Info("catalog reloaded", zap.String("checksum", catalog.Checksum()))
		return nil
	}

	// Step 5: Initialize the session store.
	store, storeCloser, err := buildSessionStore(ctx, cfg.Session.Store, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Build the pricing engine and wizard coordinator.
	engine := pricing.NewEngine(catalog)
	coordinator := coordinate.New(store, catalog, engine, cfg.Session.TTL, metrics)

	// Step 7: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		CatalogLoaded: catalog.Loaded,
		SessionStore:  store,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Coordinator:    coordinator,
		Engine:         engine,
		Catalog:        catalog,
		ReloadCatalog:  reloadCatalog,
		HealthHandler:  observability.HandleHealth(),
		ReadyHandler:   observability.HandleReady(readinessChecks),
		MetricsHandler: observability.Handler(),
	})

	// Wrap router with metrics and tracing middleware.
	handler := metrics.MetricsMiddleware(observability.TracingMiddleware(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 8: Start the expiry sweeper.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go runSessionSweeper(bgCtx, coordinator, cfg.Session.SweepInterval, logger)

	// Step 9: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	// Close stores.
	if storeCloser != nil {
		storeCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// loadCatalog reads, validates, and compiles the price catalog file.
func loadCatalog(path string) (*pricing.Catalog, int, error) {
	def, err := pricing.LoadCatalogFile(path)
	if err != nil {
		return nil, 0, err
	}

	validator := pricing.NewValidator()
	if verrs := validator.Validate(def); len(verrs) > 0 {
		return nil, 0, fmt.Errorf("catalog validation failed: %v (and %d more)",
			verrs[0], len(verrs)-1)
	}

	catalog, cerr := pricing.NewCatalog(def)
	if cerr != nil {
		return nil, 0, cerr
	}
	return catalog, len(def.Items), nil
}

// buildSessionStore creates the session store based on config.
func buildSessionStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (session.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: connect: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session store: ping: %w", err)
		}

		return session.NewPgStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}

// runSessionSweeper periodically expires sessions past their TTL.
func runSessionSweeper(ctx context.Context, coord *coordinate.Coordinator, interval time.Duration, logger *zap.Logger) {
	if interval == 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := coord.SweepExpired(ctx)
			if err != nil {
				logger.Error("session sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				logger.Info("expired sessions swept", zap.Int("count", swept))
			}
		}
	}
}
