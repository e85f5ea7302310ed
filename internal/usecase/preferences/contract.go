package preferences

import (
	"context"
	"time"

	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/usecase/rematch"
)

// Repository reads and updates user matching preferences.
type Repository interface {
	Preferences(ctx context.Context, userID string) (domuser.Preferences, error)
	UpdateSettings(ctx context.Context, userID string, s domuser.Settings) (domuser.Preferences, error)
}

// Scheduler is the periodic rematch scheduler as seen by users.
type Scheduler interface {
	Running() bool
	NextRunTime() *time.Time
	RunForUser(ctx context.Context, userID string) (rematch.CycleStats, error)
}
