package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"roomstay/internal/bootstrap"
	"roomstay/internal/infra/config"
	"roomstay/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	if cfg.SeedFile != "" {
		n, err := app.LoadFixtures(ctx, cfg.SeedFile)
		if err != nil {
			logger.Warn("catalog fixtures load failed", "error", err, "path", cfg.SeedFile)
		} else {
			logger.Info("catalog fixtures loaded", "units", n)
		}
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
