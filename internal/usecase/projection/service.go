// Package projection keeps the local read models of reports and users in sync
// with the owning services.
package projection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/logger"
)

// Service applies projection updates.
type Service struct {
	reports ReportStore
	users   UserStore
	cascade Cascader
	logger  *zap.Logger
}

// New creates a projection service.
func New(reports ReportStore, users UserStore, cascade Cascader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reports: reports, users: users, cascade: cascade, logger: logger}
}

// SyncReport validates and stores the projection of a report.
// Returns true when the report was not known before.
func (s *Service) SyncReport(ctx context.Context, p report.Params) (report.Report, bool, error) {
	r, err := report.New(p)
	if err != nil {
		return report.Report{}, false, err
	}
	created, err := s.reports.Upsert(ctx, &r)
	if err != nil {
		return report.Report{}, false, fmt.Errorf("sync report %s: %w", r.Ref(), err)
	}
	logger.FromContextOr(ctx, s.logger).Debug("report projection synced",
		zap.String("report", r.Ref()),
		zap.Bool("created", created),
	)
	return r, created, nil
}

// DeleteReport drops the projection and every match referencing the report.
// Deleting an unknown report is not an error; matches are still swept.
func (s *Service) DeleteReport(ctx context.Context, kind report.Kind, id string) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%q: %w", kind, domain.ErrInvalidReportKind)
	}
	err := s.reports.Delete(ctx, kind, id)
	if err != nil && !errors.Is(err, domain.ErrReportNotFound) {
		return 0, fmt.Errorf("delete report %s:%s: %w", kind, id, err)
	}
	return s.cascade.ReportDeleted(ctx, kind, id)
}

// SyncUser validates and stores user preferences.
func (s *Service) SyncUser(ctx context.Context, p domuser.Params) (domuser.Preferences, error) {
	prefs, err := domuser.New(p)
	if err != nil {
		return domuser.Preferences{}, err
	}
	if err := s.users.Upsert(ctx, &prefs); err != nil {
		return domuser.Preferences{}, fmt.Errorf("sync user %s: %w", p.UserID, err)
	}
	return prefs, nil
}
