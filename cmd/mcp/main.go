package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/textify/internal/adapters/mcp"
	"github.com/kirillkom/textify/internal/bootstrap"
	"github.com/kirillkom/textify/internal/config"
	"github.com/kirillkom/textify/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	logger := logging.New(os.Stderr, "textify-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, logger, nil)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.Sessions, app.Exporter, logger)
	if err := server.ServeStdio(tools.NewServer(cfg.MCPServerName, cfg.MCPServerVersion)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
	app.Sessions.Shutdown()
}
