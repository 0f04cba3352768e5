package main

import (
	"context"
	"os"
	"time"

	"movie_sync/internal/app"
	"movie_sync/internal/config"
	"movie_sync/internal/diagnose"
	"movie_sync/internal/logging"
)

const timeout = 2 * time.Minute

func main() {
	logger := logging.New(os.Stderr, "warn")

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		_ = diagnose.ConfigFailure(err).Write(os.Stdout)
		os.Exit(1)
	}

	logger = logging.New(os.Stderr, cfg.LogLevel)

	a := app.New(cfg, logger)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report := a.Doctor().Run(ctx)
	if err := report.Write(os.Stdout); err != nil {
		logger.Error("failed to write report", "error", err)
	}
	if !report.OK() {
		cancel()
		a.Close()
		os.Exit(1)
	}
}
