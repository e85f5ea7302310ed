package matching

import (
	"context"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/usecase/notify"
)

// ReportReader reads the report projection.
type ReportReader interface {
	GetByID(ctx context.Context, kind report.Kind, id string) (report.Report, error)
	FindCandidates(ctx context.Context, f report.CandidateFilter) ([]report.Report, error)
}

// Comparator scores one candidate against a source report.
type Comparator interface {
	Image(ctx context.Context, source, candidate *report.Report) (dommatch.Candidate, error)
	Text(ctx context.Context, source, candidate *report.Report) (dommatch.Candidate, error)
}

// ThresholdResolver resolves a user's acceptance threshold.
type ThresholdResolver interface {
	Resolve(ctx context.Context, userID string) float64
}

// MatchStore persists the top matches of lost reports.
type MatchStore interface {
	PersistTopMatches(ctx context.Context, lostID string, ranked []dommatch.Candidate) ([]dommatch.Match, error)
	DeleteAllForLostReport(ctx context.Context, lostID string) (int, error)
	DeleteAllForFoundReport(ctx context.Context, foundID string) (int, error)
}

// UserReader reads notification recipients.
type UserReader interface {
	Preferences(ctx context.Context, userID string) (domuser.Preferences, error)
}

// Notifier delivers match events.
type Notifier interface {
	Dispatch(ctx context.Context, e domnotif.Event, recipient *domuser.Preferences) notify.Outcome
}
