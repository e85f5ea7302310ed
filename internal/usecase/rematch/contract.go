package rematch

import (
	"context"

	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/usecase/matching"
)

// Matcher runs matching for one report.
type Matcher interface {
	RunForReport(ctx context.Context, kind report.Kind, id string) (matching.Run, error)
}

// UserLister lists users opted in to periodic search.
type UserLister interface {
	ListPeriodicEnabled(ctx context.Context) ([]domuser.Preferences, error)
	CountPeriodicEnabled(ctx context.Context) (int, error)
}

// ReportLister lists the reports a user owns.
type ReportLister interface {
	ListForOwner(ctx context.Context, userID string, kinds ...report.Kind) ([]report.Report, error)
}
