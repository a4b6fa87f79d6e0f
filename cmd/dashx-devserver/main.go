// Command dashx-devserver runs an in-memory DashX backend for local
// development.
//
//	dashx-devserver -a 127.0.0.1:8080 -g 127.0.0.1:50051 -k pk_dev
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dashxhq/dashx-go/internal/devserver"
	"github.com/dashxhq/dashx-go/internal/devserver/config"
	"github.com/dashxhq/dashx-go/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	logger := logging.NewSlogLogger(slog.New(logging.NewColorHandler(os.Stderr, slog.LevelDebug)))
	cfg := config.LoadConfig()

	srv, err := devserver.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "err", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Starting dev server...")
	if err := srv.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped", "err", err)
		os.Exit(1)
	}
}
