package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	"github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

// Strategy selects how a candidate is compared.
type Strategy string

// Comparison strategies.
const (
	StrategyImage Strategy = "image"
	StrategyText  Strategy = "text"
)

// DefaultProbeTTL is how long a text backend health probe result is reused.
const DefaultProbeTTL = 30 * time.Second

const providerLocal = "local"

// Service compares a source report with one candidate at a time.
// It keeps no state between calls besides the cached text backend probe.
type Service struct {
	image    ImageComparator
	text     TextBackend
	probeTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time

	probeMu  sync.Mutex
	probedAt time.Time
	probeOK  bool
	probes   singleflight.Group
}

// New creates a comparator. Text comparison uses local token overlap until WithText is set.
func New(image ImageComparator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		image:    image,
		probeTTL: DefaultProbeTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// WithText routes text comparisons to an external backend, falling back to
// local overlap whenever the backend is unhealthy or fails.
func (s *Service) WithText(b TextBackend, probeTTL time.Duration) *Service {
	s.text = b
	if probeTTL > 0 {
		s.probeTTL = probeTTL
	}
	return s
}

// WithClock overrides the clock used for probe caching.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TextProvider names the active text backend.
func (s *Service) TextProvider() string {
	if s.text == nil {
		return providerLocal
	}
	return s.text.Name()
}

// Compare scores candidate against source with the given strategy.
func (s *Service) Compare(
	ctx context.Context, strategy Strategy, source, candidate *report.Report,
) (dommatch.Candidate, error) {
	switch strategy {
	case StrategyImage:
		return s.Image(ctx, source, candidate)
	case StrategyText:
		return s.Text(ctx, source, candidate)
	default:
		return dommatch.Candidate{}, fmt.Errorf("unknown strategy %q: %w", strategy, domain.ErrValidation)
	}
}

// Image compares the feature bundles of source and candidate.
// A side without features yields domain.ErrInvalidCandidate.
func (s *Service) Image(ctx context.Context, source, candidate *report.Report) (dommatch.Candidate, error) {
	srcFeatures, ok := source.Features()
	if !ok {
		return dommatch.Candidate{}, fmt.Errorf("source %s has no features: %w", source.Ref(), domain.ErrInvalidCandidate)
	}
	candFeatures, ok := candidate.Features()
	if !ok {
		metrics.ComparisonsTotal.WithLabelValues(string(StrategyImage), "skipped").Inc()
		return dommatch.Candidate{}, fmt.Errorf("candidate %s has no features: %w", candidate.Ref(), domain.ErrInvalidCandidate)
	}

	start := time.Now()
	verdict, err := s.image.Compare(ctx, srcFeatures, candFeatures)
	metrics.ComparisonDuration.WithLabelValues(string(StrategyImage)).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrExternalServiceUnavailable) {
			outcome = "unavailable"
		}
		metrics.ComparisonsTotal.WithLabelValues(string(StrategyImage), outcome).Inc()
		return dommatch.Candidate{}, fmt.Errorf("compare %s with %s: %w", source.Ref(), candidate.Ref(), err)
	}
	metrics.ComparisonsTotal.WithLabelValues(string(StrategyImage), "ok").Inc()

	c := dommatch.CandidateFrom(candidate)
	c.Similarity = dommatch.Clamp01(verdict.Similarity)
	c.Confidence = verdict.Confidence()
	c.MatchPoints = verdict.GoodMatches
	return c, nil
}

// Text compares the descriptions of source and candidate. It never fails on
// backend trouble: local overlap is always available.
func (s *Service) Text(ctx context.Context, source, candidate *report.Report) (dommatch.Candidate, error) {
	if !source.HasDescription() || !candidate.HasDescription() {
		metrics.ComparisonsTotal.WithLabelValues(string(StrategyText), "skipped").Inc()
		return dommatch.Candidate{}, fmt.Errorf("missing description on %s or %s: %w",
			source.Ref(), candidate.Ref(), domain.ErrInvalidCandidate)
	}

	start := time.Now()
	sim := s.textSimilarity(ctx, source.Description(), candidate.Description())
	metrics.ComparisonDuration.WithLabelValues(string(StrategyText)).Observe(time.Since(start).Seconds())
	metrics.ComparisonsTotal.WithLabelValues(string(StrategyText), "ok").Inc()

	c := dommatch.CandidateFrom(candidate)
	c.Similarity = sim
	c.TextSimilarity = sim
	return c, nil
}

func (s *Service) textSimilarity(ctx context.Context, a, b string) float64 {
	if s.text == nil {
		return Jaccard(a, b)
	}
	log := logger.FromContextOr(ctx, s.logger)

	if !s.healthy(ctx) {
		metrics.TextFallbackTotal.WithLabelValues(s.text.Name(), "probe").Inc()
		return Jaccard(a, b)
	}
	sim, err := s.text.Similarity(ctx, a, b)
	if err != nil {
		log.Warn("text backend failed, using local overlap",
			zap.String("provider", s.text.Name()),
			zap.Error(err),
		)
		metrics.TextFallbackTotal.WithLabelValues(s.text.Name(), "error").Inc()
		return Jaccard(a, b)
	}
	return dommatch.Clamp01(sim)
}

// healthy returns the cached probe result, probing at most once per TTL
// even when many comparisons ask concurrently.
func (s *Service) healthy(ctx context.Context) bool {
	if ok, fresh := s.cachedProbe(); fresh {
		return ok
	}

	v, _, _ := s.probes.Do("probe", func() (any, error) {
		if ok, fresh := s.cachedProbe(); fresh {
			return ok, nil
		}
		err := s.text.HealthCheck(ctx)
		if err != nil {
			logger.FromContextOr(ctx, s.logger).Warn("text backend unhealthy",
				zap.String("provider", s.text.Name()),
				zap.Error(err),
			)
		}
		s.probeMu.Lock()
		s.probedAt = s.now()
		s.probeOK = err == nil
		s.probeMu.Unlock()
		return err == nil, nil
	})
	ok, _ := v.(bool)
	return ok
}

func (s *Service) cachedProbe() (ok, fresh bool) {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	if s.probedAt.IsZero() || s.now().Sub(s.probedAt) >= s.probeTTL {
		return false, false
	}
	return s.probeOK, true
}
