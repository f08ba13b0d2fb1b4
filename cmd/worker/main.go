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

	"github.com/kirillkom/textify/internal/bootstrap"
	"github.com/kirillkom/textify/internal/config"
	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/observability/logging"
	"github.com/kirillkom/textify/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("textify-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = worker.Subscriber.SubscribeEvents(ctx, func(handlerCtx context.Context, event domain.SessionEvent) error {
		workerMetrics.StartEvent()
		start := time.Now()
		if !event.OccurredAt.IsZero() {
			workerMetrics.ObserveEventLag(serviceName, start.Sub(event.OccurredAt))
		}

		recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		err := worker.Audit.Record(recordCtx, event)
		workerMetrics.FinishEvent(serviceName, event.Type, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("worker_stopped")
}
