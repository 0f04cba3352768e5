// Package report holds run observers for the sync service.
package report

import (
	"context"
	"log/slog"

	"movie_sync/internal/domain"
)

// Log writes one line per processed record and a run summary.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "report")}
}

func (l *Log) OnRecordProcessed(ctx context.Context, index, total int, movie *domain.Movie, result domain.RecordResult) {
	attrs := []any{
		"index", index,
		"total", total,
		"external_id", movie.ExternalID,
		"title", displayTitle(movie),
		"action", string(result.Outcome),
	}
	if result.Handle != nil {
		attrs = append(attrs, "page_id", result.Handle.ID)
	}

	if result.Outcome == domain.OutcomeFailed {
		l.logger.WarnContext(ctx, "record failed", append(attrs, "error", result.Err)...)
		return
	}
	l.logger.InfoContext(ctx, "record processed", attrs...)
}

func (l *Log) OnRunComplete(ctx context.Context, stats *domain.SyncStats) {
	l.logger.InfoContext(ctx, "run complete",
		"status", stats.Status,
		"incremental", stats.Incremental,
		"database_id", stats.DatabaseID,
		"total", stats.Total,
		"added", stats.Added,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
}

// displayTitle falls back to the external id for untitled entries.
func displayTitle(m *domain.Movie) string {
	if m.Title != "" {
		return m.Title
	}
	if m.OriginalTitle != "" {
		return m.OriginalTitle
	}
	return m.ExternalID
}

// Reporter mirrors service.Reporter so this package does not import service.
type Reporter interface {
	OnRecordProcessed(ctx context.Context, index, total int, movie *domain.Movie, result domain.RecordResult)
	OnRunComplete(ctx context.Context, stats *domain.SyncStats)
}

// Multi forwards every event to each reporter in order.
type Multi []Reporter

func (m Multi) OnRecordProcessed(ctx context.Context, index, total int, movie *domain.Movie, result domain.RecordResult) {
	for _, r := range m {
		r.OnRecordProcessed(ctx, index, total, movie, result)
	}
}

func (m Multi) OnRunComplete(ctx context.Context, stats *domain.SyncStats) {
	for _, r := range m {
		r.OnRunComplete(ctx, stats)
	}
}
