package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"movie_sync/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error)
}

type Store interface {
	EnsureSchema(ctx context.Context, parentPageID, name string) (string, error)
	FindByNaturalKey(ctx context.Context, databaseID, externalID string) (*domain.RecordHandle, error)
	ListAll(ctx context.Context, databaseID string) ([]domain.RecordHandle, error)
	Create(ctx context.Context, databaseID string, movie *domain.Movie) (*domain.RecordHandle, error)
	Update(ctx context.Context, databaseID, pageID string, movie *domain.Movie) (*domain.RecordHandle, error)
}

// Reporter observes a run. Implementations must not fail the run.
type Reporter interface {
	OnRecordProcessed(ctx context.Context, index, total int, movie *domain.Movie, result domain.RecordResult)
	OnRunComplete(ctx context.Context, stats *domain.SyncStats)
}
