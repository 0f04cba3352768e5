package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"movie_sync/internal/app"
	"movie_sync/internal/config"
	"movie_sync/internal/domain"
	"movie_sync/internal/logging"
	"movie_sync/internal/scheduler"
)

func main() {
	logger := logging.New(os.Stderr, "info")

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		fmt.Fprintf(os.Stderr, "movie_sync: %v\n", err)
		os.Exit(1)
	}

	logger = logging.New(os.Stderr, cfg.LogLevel)

	a := app.New(cfg, logger)
	a.EnableEvents()
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting movie sync",
		"source", a.Source.Name(),
		"mode", cfg.Douban.Mode,
		"status", cfg.Sync.Status,
		"incremental", cfg.Sync.Incremental,
		"interval", cfg.Sync.Interval,
	)

	syncService := a.SyncService()

	if cfg.Sync.Interval > 0 {
		sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.Timeout, func(stats *domain.SyncStats, _ error) {
			if stats != nil {
				printSummary(stats)
			}
		}, logger)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
			fmt.Fprintf(os.Stderr, "movie_sync: %s\n", hint(err))
			a.Close()
			os.Exit(1)
		}
		return
	}

	if cfg.Sync.Timeout > 0 {
		var cancelPass context.CancelFunc
		ctx, cancelPass = context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancelPass()
	}

	stats, err := syncService.Sync(ctx)
	if stats != nil {
		printSummary(stats)
	}
	if err != nil {
		logger.Error("sync failed", "error", err)
		fmt.Fprintf(os.Stderr, "movie_sync: %s\n", hint(err))
		a.Close()
		os.Exit(1)
	}
}

func printSummary(stats *domain.SyncStats) {
	mode := "full"
	if stats.Incremental {
		mode = "incremental"
	}
	fmt.Printf("status: %s (%s)\n", stats.Status, mode)
	fmt.Printf("total: %d\n", stats.Total)
	fmt.Printf("added: %d\n", stats.Added)
	fmt.Printf("updated: %d\n", stats.Updated)
	if stats.Incremental {
		fmt.Printf("skipped: %d\n", stats.Skipped)
	}
	fmt.Printf("failed: %d\n", stats.Failed)
}

// hint turns known failures into a one-line diagnostic.
func hint(err error) string {
	var cfgErr *domain.ConfigurationError
	var remote *domain.RemoteServiceError
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("configuration problem: %v", cfgErr)
	case errors.As(err, &remote) && (remote.StatusCode == 401 || remote.StatusCode == 403):
		return fmt.Sprintf("%v (check the API key and that the page is shared with the integration)", err)
	case errors.As(err, &remote) && remote.StatusCode == 404:
		return fmt.Sprintf("%v (check the database or parent page id)", err)
	default:
		return err.Error()
	}
}
