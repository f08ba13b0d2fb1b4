package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/textify/internal/adapters/http"
	"github.com/kirillkom/textify/internal/bootstrap"
	"github.com/kirillkom/textify/internal/config"
	"github.com/kirillkom/textify/internal/observability/logging"
	"github.com/kirillkom/textify/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("textify-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, logger, httpMetrics.Registry())
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Sessions.RunJanitor(ctx, cfg.SessionJanitorInterval, func(n int) {
		for range n {
			httpMetrics.SessionClosed()
		}
	})

	router := httpadapter.NewRouter(cfg, app.Sessions, app.Audit, httpMetrics).Handler()
	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.HTTPMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.HTTPMaxConnections)
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.HTTPMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	app.Sessions.Shutdown()
	logger.Info("api_stopped")
}
