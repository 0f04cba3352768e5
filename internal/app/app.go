// Package app builds the sync components from one configuration snapshot.
package app

import (
	"context"
	"errors"
	"log/slog"

	"movie_sync/internal/config"
	"movie_sync/internal/diagnose"
	"movie_sync/internal/domain"
	"movie_sync/internal/notion"
	"movie_sync/internal/publisher"
	"movie_sync/internal/report"
	"movie_sync/internal/service"
	"movie_sync/internal/source/douban"
)

// Source is a movie source that can also be probed without a full fetch.
type Source interface {
	service.Source
	Probe(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error)
}

type App struct {
	Config   *config.Config
	Source   Source
	Store    *notion.Client
	Reporter report.Multi

	logger  *slog.Logger
	closers []func() error
}

// New wires the configured source, the Notion client and the log reporter.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		Config: cfg,
		Source: newSource(cfg.Douban, logger),
		Store: notion.New(notion.Config{
			BaseURL:  cfg.Notion.BaseURL,
			APIKey:   cfg.Notion.APIKey,
			Version:  cfg.Notion.Version,
			Timeout:  cfg.Notion.Timeout,
			PageSize: cfg.Notion.PageSize,
		}, logger),
		Reporter: report.Multi{report.NewLog(logger)},
		logger:   logger,
	}
}

// EnableEvents adds the RabbitMQ reporter when a broker is configured. An
// unreachable broker only disables event publishing.
func (a *App) EnableEvents() {
	cfg := a.Config.RabbitMQ
	if !cfg.Enabled() {
		return
	}

	pub, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}, a.logger)
	if err != nil {
		a.logger.Warn("event publishing disabled", "error", err)
		return
	}

	a.Reporter = append(a.Reporter, pub)
	a.closers = append(a.closers, pub.Close)
}

func newSource(cfg config.DoubanConfig, logger *slog.Logger) Source {
	dc := douban.Config{
		BaseURL:      cfg.BaseURL,
		APIBaseURL:   cfg.APIBaseURL,
		APIKey:       cfg.APIKey,
		PageSize:     cfg.PageSize,
		PageDelay:    cfg.PageDelay,
		Timeout:      cfg.Timeout,
		FetchDetails: cfg.FetchDetails,
	}
	if cfg.Mode == "api" {
		return douban.NewAPISource(dc, logger)
	}
	return douban.NewWebSource(dc, logger)
}

// SyncService returns an orchestrator for the configured status and database.
func (a *App) SyncService() *service.SyncService {
	cfg := a.Config
	return service.NewSyncService(a.Source, a.Store, a.Reporter, a.logger, service.Options{
		UserID:       cfg.Douban.UserID,
		Status:       cfg.Sync.Status,
		Incremental:  cfg.Sync.Incremental,
		DatabaseID:   cfg.Notion.DatabaseID,
		ParentPageID: cfg.Notion.ParentPageID,
		DatabaseName: cfg.Notion.DatabaseName,
	})
}

func (a *App) Doctor() *diagnose.Doctor {
	return diagnose.New(a.Config, a.Source, a.Store, a.logger)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
