// Package main is the entrypoint for the consentscan API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/consentscan/internal/api"
	"github.com/kiranshivaraju/consentscan/internal/api/handler"
	mw "github.com/kiranshivaraju/consentscan/internal/api/middleware"
	"github.com/kiranshivaraju/consentscan/internal/cache"
	"github.com/kiranshivaraju/consentscan/internal/config"
	"github.com/kiranshivaraju/consentscan/internal/gateway"
	"github.com/kiranshivaraju/consentscan/internal/maintenance"
	"github.com/kiranshivaraju/consentscan/internal/metrics"
	"github.com/kiranshivaraju/consentscan/internal/queue"
	"github.com/kiranshivaraju/consentscan/internal/status"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/internal/sweeper"
)

const (
	shutdownTimeout = 30 * time.Second
	migrationsDir   = "migrations"
)

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.Server.SlogLevel())
	slog.Info("config loaded", "env", cfg.Server.Env, "auth", cfg.API.APIKeyHash != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Redis: status cache, rate limiting and the job queue
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	jobQueue, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer jobQueue.Close()
	slog.Info("redis connected")

	// 5. Services
	pgStore := store.NewPostgresStore(pool)
	gw := gateway.NewService(pgStore, jobQueue)
	statusSvc := status.NewService(pgStore, redisCache, cfg.API.StatusCacheTTL)
	maint := maintenance.NewService(pgStore, jobQueue)

	sweep, err := sweeper.New(pgStore, cfg.Retention.Window, cfg.Retention.Schedule)
	if err != nil {
		return fmt.Errorf("create sweeper: %w", err)
	}

	registry := metrics.NewRegistry()
	registry.MustRegister(metrics.NewPipelineCollector(maint, 0))

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.API.APIKeyHash),
		RateLimit: mw.NewRateLimit(redisCache, cfg.API.RateLimitPerMin),

		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": pgStore,
			"cache":    redisCache,
			"queue":    jobQueue,
		}),
		SubmitHandler: handler.NewSubmitHandler(gw, cfg.API.SubmitTimeout),
		StatusHandler: handler.NewStatusHandler(statusSvc),
		StatsHandler:  handler.NewStatsHandler(maint),

		MetricsHandler: metrics.Handler(registry),
	}
	if cfg.API.APIKeyHash == "" {
		slog.Warn("API_KEY_HASH not set, API authentication disabled")
	}

	router := api.NewRouter(deps)

	// 7. Start the retention sweeper and the HTTP server
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweep.Run(ctx); err != nil {
			slog.Error("sweeper failed", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
		stop()
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}
	<-sweepDone

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}
