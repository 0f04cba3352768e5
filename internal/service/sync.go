package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"movie_sync/internal/domain"
)

// Options is the per-run configuration of a SyncService.
type Options struct {
	UserID       string
	Status       domain.Status
	Incremental  bool
	DatabaseID   string
	ParentPageID string
	DatabaseName string
}

type SyncService struct {
	source   Source
	store    Store
	reporter Reporter
	logger   *slog.Logger
	opts     Options
}

func NewSyncService(
	source Source,
	store Store,
	reporter Reporter,
	logger *slog.Logger,
	opts Options,
) *SyncService {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &SyncService{
		source:   source,
		store:    store,
		reporter: reporter,
		logger:   logger.With("source", source.ID()),
		opts:     opts,
	}
}

// Sync runs one pass: resolve the database, fetch the user's movies for the
// configured status and write each one to the store in order. Per-record
// failures are counted and reported; only configuration, fetch and database
// resolution failures abort the run. A canceled context stops the loop and
// returns the stats gathered so far together with the context error.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := time.Now()

	if !s.opts.Status.Valid() {
		return nil, &domain.ConfigurationError{Key: "sync.status", Reason: fmt.Sprintf("unsupported value %q", s.opts.Status)}
	}
	if s.opts.UserID == "" {
		return nil, &domain.ConfigurationError{Key: "douban.user_id", Reason: "is required"}
	}

	databaseID, err := s.resolveDatabase(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting sync",
		"source_name", s.source.Name(),
		"status", s.opts.Status,
		"incremental", s.opts.Incremental,
		"database_id", databaseID,
	)

	movies, err := s.source.Fetch(ctx, s.opts.Status, s.opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetch movies: %w", err)
	}

	s.logger.Info("fetched movies from source", "count", len(movies))

	stats := &domain.SyncStats{
		Status:      s.opts.Status,
		Incremental: s.opts.Incremental,
		DatabaseID:  databaseID,
		Total:       len(movies),
	}

	var known map[string]struct{}
	if s.opts.Incremental {
		known, err = s.knownKeys(ctx, databaseID)
		if err != nil {
			s.logger.Warn("listing existing records failed, falling back to full sync", "error", err)
			known = nil
		}
	}

	var interrupted error
	for i := range movies {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sync interrupted", "processed", i, "total", len(movies), "error", err)
			interrupted = fmt.Errorf("sync interrupted: %w", err)
			break
		}

		movie := &movies[i]
		var result domain.RecordResult
		if known != nil {
			result = s.syncNew(ctx, databaseID, movie, known)
		} else {
			result = s.syncOne(ctx, databaseID, movie)
		}

		switch result.Outcome {
		case domain.OutcomeAdded:
			stats.Added++
		case domain.OutcomeUpdated:
			stats.Updated++
		case domain.OutcomeSkipped:
			stats.Skipped++
		case domain.OutcomeFailed:
			stats.Failed++
		}

		s.reporter.OnRecordProcessed(ctx, i+1, len(movies), movie, result)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"total", stats.Total,
		"added", stats.Added,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	s.reporter.OnRunComplete(ctx, stats)

	return stats, interrupted
}

// resolveDatabase prefers a configured database id and otherwise creates a
// new database under the parent page.
func (s *SyncService) resolveDatabase(ctx context.Context) (string, error) {
	if s.opts.DatabaseID != "" {
		return s.opts.DatabaseID, nil
	}
	if s.opts.ParentPageID == "" {
		return "", &domain.ConfigurationError{
			Key:    "notion.database_id",
			Reason: "either a database id or a parent page id is required",
		}
	}

	id, err := s.store.EnsureSchema(ctx, s.opts.ParentPageID, s.opts.DatabaseName)
	if err != nil {
		return "", fmt.Errorf("resolve database: %w", err)
	}
	s.logger.Info("using new database", "database_id", id)
	s.opts.DatabaseID = id
	return id, nil
}

func (s *SyncService) knownKeys(ctx context.Context, databaseID string) (map[string]struct{}, error) {
	handles, err := s.store.ListAll(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		if h.ExternalID != "" {
			known[h.ExternalID] = struct{}{}
		}
	}
	s.logger.Debug("loaded existing keys", "count", len(known))
	return known, nil
}

var errMissingKey = errors.New("movie has no external id")

// syncOne creates or updates a single movie by natural key.
func (s *SyncService) syncOne(ctx context.Context, databaseID string, movie *domain.Movie) domain.RecordResult {
	if movie.ExternalID == "" {
		return s.failed(movie, errMissingKey)
	}

	existing, err := s.store.FindByNaturalKey(ctx, databaseID, movie.ExternalID)
	if err != nil {
		return s.failed(movie, fmt.Errorf("find existing: %w", err))
	}

	if existing != nil {
		h, err := s.store.Update(ctx, databaseID, existing.ID, movie)
		if err != nil {
			return s.failed(movie, fmt.Errorf("update record: %w", err))
		}
		return domain.RecordResult{Outcome: domain.OutcomeUpdated, Handle: h}
	}

	return s.create(ctx, databaseID, movie)
}

// syncNew creates movies whose key is not yet in the database and skips the rest.
func (s *SyncService) syncNew(ctx context.Context, databaseID string, movie *domain.Movie, known map[string]struct{}) domain.RecordResult {
	if movie.ExternalID == "" {
		return s.failed(movie, errMissingKey)
	}
	if _, ok := known[movie.ExternalID]; ok {
		return domain.RecordResult{Outcome: domain.OutcomeSkipped}
	}

	result := s.create(ctx, databaseID, movie)
	if result.Outcome == domain.OutcomeAdded {
		known[movie.ExternalID] = struct{}{}
	}
	return result
}

func (s *SyncService) create(ctx context.Context, databaseID string, movie *domain.Movie) domain.RecordResult {
	h, err := s.store.Create(ctx, databaseID, movie)
	if err != nil {
		return s.failed(movie, fmt.Errorf("create record: %w", err))
	}
	return domain.RecordResult{Outcome: domain.OutcomeAdded, Handle: h}
}

func (s *SyncService) failed(movie *domain.Movie, err error) domain.RecordResult {
	s.logger.Debug("record failed", "external_id", movie.ExternalID, "error", err)
	return domain.RecordResult{Outcome: domain.OutcomeFailed, Err: err}
}

type nopReporter struct{}

func (nopReporter) OnRecordProcessed(context.Context, int, int, *domain.Movie, domain.RecordResult) {}
func (nopReporter) OnRunComplete(context.Context, *domain.SyncStats)                               {}
