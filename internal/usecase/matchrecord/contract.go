package matchrecord

import (
	"context"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// Repository defines the storage contract for persisted matches.
type Repository interface {
	ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error)
	ByStatus(ctx context.Context, status dommatch.Status) ([]dommatch.Match, error)
	ByID(ctx context.Context, matchID string) (dommatch.Match, error)
	UpdateStatus(ctx context.Context, matchID string, status dommatch.Status) (dommatch.Match, error)
}
