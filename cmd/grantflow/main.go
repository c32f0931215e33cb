package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/grantflow/internal/adapters/cli"
	"github.com/kirillkom/grantflow/internal/bootstrap"
	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/observability/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "grantflow-cli", cfg.LogLevel, cfg.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	return cli.NewRoot(cli.Env{
		Locations: app.Locations,
		Gateway:   app.Gateway,
		Workflow:  app.Workflow,
		Exports:   app.Exports,
	}).ExecuteContext(ctx)
}
