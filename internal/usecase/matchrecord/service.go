package matchrecord

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	"github.com/kailas-cloud/lostmatch/internal/logger"
)

// Service exposes persisted matches and their review status.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a match record service.
func New(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// ByLostReport lists a lost report's matches, best first.
func (s *Service) ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error) {
	ms, err := s.repo.ByLostReport(ctx, lostID)
	if err != nil {
		return nil, fmt.Errorf("matches of lost report %s: %w", lostID, err)
	}
	return ms, nil
}

// ByStatus lists matches in a review status, newest first.
func (s *Service) ByStatus(ctx context.Context, status string) ([]dommatch.Match, error) {
	st, err := dommatch.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	ms, err := s.repo.ByStatus(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("matches with status %s: %w", st, err)
	}
	return ms, nil
}

// Get returns one match.
func (s *Service) Get(ctx context.Context, matchID string) (dommatch.Match, error) {
	m, err := s.repo.ByID(ctx, matchID)
	if err != nil {
		return dommatch.Match{}, fmt.Errorf("get match %s: %w", matchID, err)
	}
	return m, nil
}

// UpdateStatus moves a match to status. Any transition between known statuses is allowed.
func (s *Service) UpdateStatus(ctx context.Context, matchID, status string) (dommatch.Match, error) {
	st, err := dommatch.ParseStatus(status)
	if err != nil {
		return dommatch.Match{}, err
	}
	m, err := s.repo.UpdateStatus(ctx, matchID, st)
	if err != nil {
		return dommatch.Match{}, fmt.Errorf("update match %s: %w", matchID, err)
	}
	logger.FromContextOr(ctx, s.logger).Info("match status updated",
		zap.String("match_id", matchID),
		zap.String("status", string(st)),
	)
	return m, nil
}
