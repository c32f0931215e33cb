package main

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/grantflow/internal/adapters/mcp"
	"github.com/kirillkom/grantflow/internal/bootstrap"
	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/observability/logging"
)

const (
	serviceName = "grantflow-mcp"
	version     = "0.1.0"
)

func main() {
	cfg := config.Load()
	// stdout carries the protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel, cfg.Debug)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.Locations, app.Gateway, logger)
	if err := server.ServeStdio(mcpadapter.NewServer(serviceName, version, tools)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
