package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/internal/app"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
	"github.com/invoiceapp/invoiceapp/internal/observability"
	"github.com/invoiceapp/invoiceapp/internal/platform/cache"
	"github.com/invoiceapp/invoiceapp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	stores, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, 5*time.Second)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	services := app.BuildServices(cfg, stores, redisClient, metrics, logger)

	cron := make([]jobs.CronRegistration, 0, 4)
	for _, entry := range []struct{ task, spec string }{
		{jobs.TaskOverdueSweep, cfg.OverdueSweepCron},
		{jobs.TaskLowStockScan, cfg.LowStockScanCron},
		{jobs.TaskLedgerCheck, cfg.LedgerCheckCron},
		{jobs.TaskAnalyticsWarmup, cfg.AnalyticsWarmupCron},
	} {
		// Cron tasks carry no payload; handlers run as of their own clock.
		cron = append(cron, jobs.CronRegistration{
			Spec:    entry.spec,
			Task:    asynq.NewTask(entry.task, nil, asynq.Queue(jobs.QueueDefault)),
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueSweep, Handler: jobs.NewOverdueSweepJob(services.Invoicing, logger, jobMetrics).Handle},
			{Type: jobs.TaskLowStockScan, Handler: jobs.NewLowStockScanJob(services.Inventory, logger, jobMetrics).Handle},
			{Type: jobs.TaskLedgerCheck, Handler: jobs.NewLedgerCheckJob(services.Inventory, logger, jobMetrics).Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: jobs.NewAnalyticsWarmupJob(services.Analytics, logger, jobMetrics).Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
