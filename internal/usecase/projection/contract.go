package projection

import (
	"context"

	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
)

// ReportStore is the report read model.
type ReportStore interface {
	Upsert(ctx context.Context, r *report.Report) (bool, error)
	Delete(ctx context.Context, kind report.Kind, id string) error
}

// UserStore is the user preferences read model.
type UserStore interface {
	Upsert(ctx context.Context, p *domuser.Preferences) error
}

// Cascader removes matches that reference a deleted report.
type Cascader interface {
	ReportDeleted(ctx context.Context, kind report.Kind, id string) (int, error)
}
