package preferences

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/usecase/rematch"
)

// PeriodicStatus is a user's view of periodic search.
type PeriodicStatus struct {
	UserEnabled       bool
	ServiceRunning    bool
	NextRunTime       *time.Time
	MatchingThreshold *int
}

// Service manages per-user periodic search settings.
type Service struct {
	repo      Repository
	scheduler Scheduler
	logger    *zap.Logger
}

// New creates a preferences service.
func New(repo Repository, scheduler Scheduler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, scheduler: scheduler, logger: logger}
}

// Status returns the periodic search status of userID.
func (s *Service) Status(ctx context.Context, userID string) (PeriodicStatus, error) {
	p, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return PeriodicStatus{}, fmt.Errorf("get preferences of %s: %w", userID, err)
	}
	return s.statusOf(&p), nil
}

// UpdateSettings applies a partial update. Invalid fields are dropped;
// nothing valid left yields domain.ErrInvalidSettings.
func (s *Service) UpdateSettings(
	ctx context.Context, userID string, enabled *bool, threshold *float64,
) (PeriodicStatus, error) {
	settings, err := domuser.NewSettings(enabled, threshold)
	if err != nil {
		return PeriodicStatus{}, err
	}
	p, err := s.repo.UpdateSettings(ctx, userID, settings)
	if err != nil {
		return PeriodicStatus{}, fmt.Errorf("update settings of %s: %w", userID, err)
	}
	logger.FromContextOr(ctx, s.logger).Info("periodic search settings updated",
		zap.String("user_id", userID),
		zap.Bool("enabled", p.PeriodicSearchEnabled()),
	)
	return s.statusOf(&p), nil
}

// Trigger runs periodic search for userID right away.
func (s *Service) Trigger(ctx context.Context, userID string) (rematch.CycleStats, error) {
	if _, err := s.repo.Preferences(ctx, userID); err != nil {
		return rematch.CycleStats{}, fmt.Errorf("get preferences of %s: %w", userID, err)
	}
	stats, err := s.scheduler.RunForUser(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("periodic search for %s: %w", userID, err)
	}
	return stats, nil
}

func (s *Service) statusOf(p *domuser.Preferences) PeriodicStatus {
	st := PeriodicStatus{
		UserEnabled:    p.PeriodicSearchEnabled(),
		ServiceRunning: s.scheduler.Running(),
		NextRunTime:    s.scheduler.NextRunTime(),
	}
	if t, ok := p.MatchingThreshold(); ok {
		st.MatchingThreshold = &t
	}
	return st
}
