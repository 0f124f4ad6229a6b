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

	"github.com/OsmanWais29/filesecureai-sub002/internal/bootstrap"
	"github.com/OsmanWais29/filesecureai-sub002/internal/config"
	"github.com/OsmanWais29/filesecureai-sub002/internal/observability/logging"
	"github.com/OsmanWais29/filesecureai-sub002/internal/observability/metrics"
)

const resumeTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:   "worker",
		Lifecycle: workerMetrics.Lifecycle(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		logger.Error("app_start_failed", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, resumeTimeout)
		defer cancel()

		if doc, err := app.Documents.GetByID(processCtx, documentID); err == nil {
			workerMetrics.ObserveQueueLag("worker", time.Since(doc.UpdatedAt))
		}

		workerMetrics.StartDocument()
		started := time.Now()
		result, err := app.Ingestion.Resume(processCtx, documentID)
		workerMetrics.FinishDocument("worker", time.Since(started), err)
		if err != nil {
			return err
		}
		logger.Info("document_resumed",
			"document_id", documentID,
			"success", result.Success,
			"warnings", len(result.Warnings),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
