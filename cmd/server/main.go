package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatcher/internal/api"
	"github.com/notifyhub/dispatcher/internal/config"
	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/invoker"
	"github.com/notifyhub/dispatcher/internal/listener"
	"github.com/notifyhub/dispatcher/internal/metrics"
	"github.com/notifyhub/dispatcher/internal/ratelimiter"
	"github.com/notifyhub/dispatcher/internal/storage"
	"github.com/notifyhub/dispatcher/internal/workerpool"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// ---- optional audit persistence ----
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = storage.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := storage.Migrate(cfg.DatabaseURL, cfg.MigrationsSource); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
	} else {
		logger.Info("DATABASE_URL not set, delivery audit logging disabled")
	}

	// ---- metrics ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// ---- worker pool backing the dispatcher's Executor ----
	// This context governs every listener task's drain loop for the
	// dispatcher's whole lifetime; it is cancelled during step 2 of
	// shutdown below, independent of any individual request's context.
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()

	pool2 := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolQueueSize, logger.Named("workerpool"))

	// ---- invoker chain ----
	var inv dispatch.Invoker = invoker.NewWebhookInvoker(cfg.WebhookTimeout)
	if pool != nil {
		inv = invoker.NewAuditInvoker(inv, pool, "dispatcher", logger.Named("audit"))
	}
	inv = invoker.WithMetrics(inv, m, "dispatcher")
	inv = invoker.WithLogging(inv, logger.Named("invoker"))

	// ---- dispatcher ----
	d, err := dispatch.New(dispatch.Config{
		Executor:         pool2,
		Invoker:          inv,
		MaxQueueCapacity: cfg.MaxQueueCapacity,
		Name:             "dispatcher",
		OfferTimeout:     cfg.OfferTimeout,
		MaxOfferAttempts: cfg.MaxOfferAttempts,
		PollInterval:     cfg.PollInterval,
		Context:          dispatchCtx,
		Logger:           logger.Named("dispatch"),
	})
	if err != nil {
		logger.Fatal("failed to construct dispatcher", zap.Error(err))
	}

	directory := listener.NewDirectory()
	limiter := ratelimiter.New(cfg.IngressRateLimit, cfg.IngressBurst)

	// ---- periodic queue-depth sampling ----
	sampleCtx, cancelSample := context.WithCancel(ctx)
	defer cancelSample()
	go sampleQueueDepths(sampleCtx, d, m, cfg.MetricsSampleInterval)

	// ---- HTTP server ----
	router := api.NewRouter(d, directory, limiter, m, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal every listener task to retire.
	cancelSample()
	cancelDispatch()

	// 3. Wait for in-flight tasks to finish draining, or the deadline.
	if err := pool2.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func sampleQueueDepths(ctx context.Context, d *dispatch.Dispatcher, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SampleQueueDepths(d.ListenerStats())
		}
	}
}
