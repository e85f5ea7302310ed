package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
	"github.com/kailas-cloud/lostmatch/internal/usecase/ranking"
)

// Defaults for a run.
const (
	DefaultMaxConcurrency = 5
	DefaultCompareTimeout = 60 * time.Second
)

// Run is the result of one orchestration run.
type Run struct {
	Source     report.Report
	Threshold  float64
	Candidates []dommatch.Candidate
	Persisted  []dommatch.Match
	Notified   bool
}

// Service orchestrates one matching run: threshold, candidate pool,
// bounded parallel comparison, ranking, persistence and notification.
type Service struct {
	reports   ReportReader
	compare   Comparator
	threshold ThresholdResolver
	matches   MatchStore
	users     UserReader
	notifier  Notifier
	logger    *zap.Logger

	maxConcurrency int
	compareTimeout time.Duration
	textEnabled    bool
	topN           int
	weights        ranking.Weights
	now            func() time.Time
}

// New creates a matching orchestrator.
func New(
	reports ReportReader, compare Comparator, threshold ThresholdResolver,
	matches MatchStore, logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reports:        reports,
		compare:        compare,
		threshold:      threshold,
		matches:        matches,
		logger:         logger,
		maxConcurrency: DefaultMaxConcurrency,
		compareTimeout: DefaultCompareTimeout,
		textEnabled:    true,
		topN:           dommatch.MaxPerLostReport,
		weights:        ranking.DefaultWeights,
		now:            time.Now,
	}
}

// WithNotifier enables match notifications; users resolves recipients.
func (s *Service) WithNotifier(n Notifier, users UserReader) *Service {
	s.notifier = n
	s.users = users
	return s
}

// WithConcurrency bounds in-flight comparisons per strategy.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// WithCompareTimeout bounds each single comparison.
func (s *Service) WithCompareTimeout(d time.Duration) *Service {
	if d > 0 {
		s.compareTimeout = d
	}
	return s
}

// WithTextMatching toggles the text strategy.
func (s *Service) WithTextMatching(enabled bool) *Service {
	s.textEnabled = enabled
	return s
}

// WithTopN sets how many matches are notified.
func (s *Service) WithTopN(n int) *Service {
	if n > 0 && n <= dommatch.MaxPerLostReport {
		s.topN = n
	}
	return s
}

// WithClock overrides the event timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunForReport matches one lost or found report against the opposite pool.
// Persistence and notification failures are logged and never change the ranking.
func (s *Service) RunForReport(ctx context.Context, kind report.Kind, id string) (Run, error) {
	if kind != report.KindLost && kind != report.KindFound {
		return Run{}, fmt.Errorf("cannot run matching for %q: %w", kind, domain.ErrInvalidReportKind)
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("kind", string(kind)), zap.String("report_id", id))

	source, err := s.reports.GetByID(ctx, kind, id)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(kind), "error").Inc()
		return Run{}, fmt.Errorf("load source: %w", err)
	}

	run := Run{Source: source, Threshold: s.threshold.Resolve(ctx, source.OwnerUserID())}

	imageCands, textCands, err := s.score(ctx, &source)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(kind), "error").Inc()
		return Run{}, err
	}
	run.Candidates = ranking.Rank(imageCands, textCands, run.Threshold, s.weights)
	metrics.RankedCandidates.Observe(float64(len(run.Candidates)))

	switch kind {
	case report.KindLost:
		if len(run.Candidates) > 0 {
			run.Persisted = s.persist(ctx, log, id, run.Candidates)
			run.Notified = s.notify(ctx, log, &source, run.Candidates)
		}
	case report.KindFound:
		// Found-initiated runs only notify; matches are persisted from the lost side.
		if lost := onlyKind(run.Candidates, report.KindLost); len(lost) > 0 {
			run.Notified = s.notify(ctx, log, &source, lost)
		}
	}

	outcome := "empty"
	if len(run.Candidates) > 0 {
		outcome = "matched"
	}
	metrics.RunsTotal.WithLabelValues(string(kind), outcome).Inc()
	log.Info("matching run completed",
		zap.Float64("threshold", run.Threshold),
		zap.Int("image_scored", len(imageCands)),
		zap.Int("text_scored", len(textCands)),
		zap.Int("accepted", len(run.Candidates)),
		zap.Int("persisted", len(run.Persisted)),
		zap.Bool("notified", run.Notified),
	)
	return run, nil
}

// CombinedSearch scores lost reports against a found report with the
// text-weighted combined formula. It has no side effects.
func (s *Service) CombinedSearch(ctx context.Context, foundID string) ([]dommatch.Candidate, error) {
	source, err := s.reports.GetByID(ctx, report.KindFound, foundID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if _, ok := source.Features(); !ok {
		return nil, fmt.Errorf("found report %s has no image features: %w", foundID, domain.ErrValidation)
	}
	threshold := s.threshold.Resolve(ctx, source.OwnerUserID())

	pool, err := s.reports.FindCandidates(ctx, report.CandidateFilter{
		Kind:            report.KindLost,
		ExcludeStatuses: []report.Status{report.StatusResolved},
		RequireFeatures: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load lost pool: %w", err)
	}

	var g errgroup.Group
	var imageCands, textCands []dommatch.Candidate
	g.Go(func() error {
		imageCands = s.compareAll(ctx, s.compare.Image, &source, pool)
		return nil
	})
	g.Go(func() error {
		if s.textEnabled && source.HasDescription() {
			textCands = s.compareAll(ctx, s.compare.Text, &source, withDescription(pool))
		}
		return nil
	})
	_ = g.Wait()

	return ranking.Combined(imageCands, textCands, ranking.Source{
		Name:     source.Name(),
		Category: source.Category(),
	}, threshold, ranking.CombinedWeights), nil
}

// ReportDeleted removes every persisted match that references the report.
func (s *Service) ReportDeleted(ctx context.Context, kind report.Kind, id string) (int, error) {
	var n int
	var err error
	switch kind {
	case report.KindLost:
		n, err = s.matches.DeleteAllForLostReport(ctx, id)
	case report.KindFound:
		n, err = s.matches.DeleteAllForFoundReport(ctx, id)
	case report.KindItem:
		return 0, nil
	default:
		return 0, fmt.Errorf("%q: %w", kind, domain.ErrInvalidReportKind)
	}
	if err != nil {
		return 0, fmt.Errorf("cascade delete matches of %s:%s: %w", kind, id, err)
	}
	if n > 0 {
		logger.FromContextOr(ctx, s.logger).Info("matches removed with report",
			zap.String("kind", string(kind)),
			zap.String("report_id", id),
			zap.Int("deleted", n),
		)
	}
	return n, nil
}

// score runs both strategies concurrently and returns once every comparison has finished.
func (s *Service) score(ctx context.Context, source *report.Report) (image, text []dommatch.Candidate, err error) {
	opposite, _ := source.Kind().Opposite()
	kinds := []report.Kind{opposite}
	if source.Kind() == report.KindFound {
		kinds = append(kinds, report.KindItem)
	}

	_, hasFeatures := source.Features()
	useText := s.textEnabled && source.HasDescription()

	var imagePool, textPool []report.Report
	for _, k := range kinds {
		if hasFeatures {
			p, err := s.reports.FindCandidates(ctx, report.CandidateFilter{
				Kind:            k,
				ExcludeStatuses: []report.Status{report.StatusResolved},
				RequireFeatures: true,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("load %s image pool: %w", k, err)
			}
			imagePool = append(imagePool, p...)
		}
		if useText {
			p, err := s.reports.FindCandidates(ctx, report.CandidateFilter{
				Kind:               k,
				ExcludeStatuses:    []report.Status{report.StatusResolved},
				RequireDescription: true,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("load %s text pool: %w", k, err)
			}
			textPool = append(textPool, p...)
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		image = s.compareAll(ctx, s.compare.Image, source, imagePool)
		return nil
	})
	g.Go(func() error {
		text = s.compareAll(ctx, s.compare.Text, source, textPool)
		return nil
	})
	_ = g.Wait()
	return image, text, nil
}

type compareFunc func(ctx context.Context, source, candidate *report.Report) (dommatch.Candidate, error)

// compareAll scores pool with at most maxConcurrency calls in flight, each
// under its own timeout. Failed candidates are dropped; order follows pool.
func (s *Service) compareAll(
	ctx context.Context, fn compareFunc, source *report.Report, pool []report.Report,
) []dommatch.Candidate {
	if len(pool) == 0 {
		return nil
	}
	log := logger.FromContextOr(ctx, s.logger)

	results := make([]dommatch.Candidate, len(pool))
	ok := make([]bool, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i := range pool {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.compareTimeout)
			defer cancel()

			c, err := fn(cctx, source, &pool[i])
			if err != nil {
				if errors.Is(err, domain.ErrInvalidCandidate) {
					log.Debug("candidate skipped", zap.String("candidate", pool[i].Ref()), zap.Error(err))
				} else {
					log.Warn("candidate comparison failed", zap.String("candidate", pool[i].Ref()), zap.Error(err))
				}
				return nil
			}
			results[i] = c
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]dommatch.Candidate, 0, len(pool))
	for i, c := range results {
		if ok[i] {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) persist(ctx context.Context, log *zap.Logger, lostID string, ranked []dommatch.Candidate) []dommatch.Match {
	persisted, err := s.matches.PersistTopMatches(ctx, lostID, ranked)
	if err != nil {
		log.Error("persist top matches failed", zap.Error(err))
		return nil
	}
	metrics.PersistedMatchesTotal.Add(float64(len(persisted)))
	return persisted
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, source *report.Report, ranked []dommatch.Candidate) bool {
	if s.notifier == nil {
		return false
	}
	top := ranking.Top(ranked, s.topN)
	summaries := make([]domnotif.MatchSummary, len(top))
	for i, c := range top {
		summaries[i] = domnotif.MatchSummary{
			CandidateID: c.ID,
			Kind:        c.Kind,
			Similarity:  c.Similarity,
			Confidence:  c.Confidence,
			MatchPoints: c.MatchPoints,
		}
	}
	event := domnotif.Event{
		RecipientUserID: source.OwnerUserID(),
		ReportID:        source.ID(),
		ReportType:      source.Kind(),
		Matches:         summaries,
		Timestamp:       s.now().UTC(),
	}

	var recipient *domuser.Preferences
	if s.users != nil {
		prefs, err := s.users.Preferences(ctx, source.OwnerUserID())
		if err != nil {
			log.Warn("recipient lookup failed, email skipped", zap.Error(err))
		} else {
			recipient = &prefs
		}
	}

	return s.notifier.Dispatch(ctx, event, recipient).Delivered()
}

func onlyKind(cands []dommatch.Candidate, kind report.Kind) []dommatch.Candidate {
	out := make([]dommatch.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func withDescription(pool []report.Report) []report.Report {
	out := make([]report.Report, 0, len(pool))
	for i := range pool {
		if pool[i].HasDescription() {
			out = append(out, pool[i])
		}
	}
	return out
}
