package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Subash-08/loke-store-sub001/internal"
	"github.com/Subash-08/loke-store-sub001/internal/handler/api"
	"github.com/Subash-08/loke-store-sub001/internal/middleware"
	"github.com/Subash-08/loke-store-sub001/internal/router"
	"github.com/Subash-08/loke-store-sub001/internal/service"
	"github.com/Subash-08/loke-store-sub001/internal/telemetry"
	"github.com/Subash-08/loke-store-sub001/internal/worker"

	storepg "github.com/Subash-08/loke-store-sub001/internal/postgres"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(cfg.Sentry, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Pick the persistence backend
	var (
		store      service.Store
		batchStore worker.BatchStore
	)
	switch cfg.Store {
	case "memory":
		logger.Warn("Using in-memory store; data will not survive restarts")
		memStore := service.NewMemoryStore()
		store = memStore
		batchStore = memStore
	default:
		logger.Info("Connecting to database...")
		sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		logger.Info("Database connection established")

		logger.Info("Running database migrations...")
		version, err := internal.RunMigrations(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database migrations completed", "schema_version", version)

		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		pgStore := storepg.NewListStore(pool)
		store = pgStore
		batchStore = pgStore
	}

	// Background maintenance: expired merge batch markers are pruned so
	// the idempotence table does not grow without bound.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	maintenance := worker.New(batchStore, worker.Config{}, logger.With("component", "worker"))
	go func() {
		if err := maintenance.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("maintenance worker exited", "error", err)
		}
	}()

	// Initialize services
	cartService := service.NewListService(store, service.KindCart, logger.With("service", "cart"))
	wishlistService := service.NewListService(store, service.KindWishlist, logger.With("service", "wishlist"))

	verifier := middleware.StaticTokens(cfg.AuthTokens)
	if len(cfg.AuthTokens) == 0 {
		logger.Warn("AUTH_TOKENS is empty; every API request will be rejected with 401")
	}

	// HTTP metrics and rate limiters
	metrics := middleware.NewMetrics(cfg.MetricsNamespace)
	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()
	mergeRateLimiter := middleware.NewRateLimiter(middleware.MergeRateLimiterConfig())
	defer mergeRateLimiter.Stop()

	securityCfg := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env != "prod" {
		securityCfg.HSTSMaxAge = 0
	}

	// Global middleware chain
	r := router.New(
		router.Recovery(logger),
		middleware.SecurityHeaders(securityCfg),
		middleware.RequestID,
		middleware.WithClientIP(),
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.MaxBodySize(),
		defaultRateLimiter.Middleware,
		router.CORS([]string{cfg.BaseURL}),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Authenticated API routes
	authed := r.Group(
		middleware.RequireUser(verifier),
		middleware.WithRequestLogger(logger),
	)

	cartHandler := api.NewListHandler(cartService, logger.With("handler", "cart"))
	cartHandler.RegisterRoutes(authed, "/api/cart", mergeRateLimiter.Middleware)

	wishlistHandler := api.NewListHandler(wishlistService, logger.With("handler", "wishlist"))
	wishlistHandler.RegisterRoutes(authed, "/api/wishlist", mergeRateLimiter.Middleware)

	// Start server with graceful shutdown
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", "address", addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
