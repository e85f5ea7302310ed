package rematch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	"github.com/kailas-cloud/lostmatch/internal/lock"
	"github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

// DefaultInterval re-matches at 00:00, 06:00, 12:00 and 18:00 UTC.
const DefaultInterval = 6 * time.Hour

// ErrLockHeld signals a cycle skipped because another instance holds the lock.
var ErrLockHeld = errors.New("scheduler lock held by another instance")

// CycleStats summarizes one re-matching pass.
type CycleStats struct {
	Users      int       `json:"users"`
	Reports    int       `json:"reports"`
	Failures   int       `json:"failures"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running         bool
	CycleInProgress bool
	Interval        time.Duration
	NextRunTime     *time.Time
	LastCycle       *CycleStats
}

// Scheduler re-runs matching for opted-in users on UTC-aligned ticks.
// A tick that lands while a cycle is still running is skipped.
type Scheduler struct {
	matcher  Matcher
	users    UserLister
	reports  ReportLister
	locker   lock.Locker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	runInProgress atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	cycles    sync.WaitGroup
	next      time.Time
	lastCycle *CycleStats
}

// New creates a stopped scheduler.
func New(matcher Matcher, users UserLister, reports ReportLister, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		matcher:  matcher,
		users:    users,
		reports:  reports,
		locker:   lock.Noop{},
		interval: DefaultInterval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithInterval sets the tick interval. Intervals dividing 24h align to UTC midnight.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithLocker adds a cross-process single-flight lock around recurring cycles.
func (s *Scheduler) WithLocker(l lock.Locker) *Scheduler {
	if l != nil {
		s.locker = l
	}
	return s
}

// WithClock overrides the time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// NextBoundary returns the first multiple of interval (counted from the zero
// time, UTC) strictly after t.
func NextBoundary(t time.Time, interval time.Duration) time.Time {
	return t.UTC().Truncate(interval).Add(interval)
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.next = NextBoundary(s.now(), s.interval)

	go s.loop(ctx, s.done)
	s.logger.Info("periodic rematch scheduler started",
		zap.Duration("interval", s.interval),
		zap.Time("next_run", s.next),
	)
}

// Stop halts ticking and waits for an in-flight cycle to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.next = time.Time{}
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.cycles.Wait()
	s.logger.Info("periodic rematch scheduler stopped")
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// NextRunTime returns the next tick, nil when stopped.
func (s *Scheduler) NextRunTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	next := s.next
	return &next
}

// Status returns a snapshot for the admin surface.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:         s.cancel != nil,
		CycleInProgress: s.runInProgress.Load(),
		Interval:        s.interval,
	}
	if s.cancel != nil {
		next := s.next
		st.NextRunTime = &next
	}
	if s.lastCycle != nil {
		last := *s.lastCycle
		st.LastCycle = &last
	}
	return st
}

// CountEnabledUsers returns how many users are opted in.
func (s *Scheduler) CountEnabledUsers(ctx context.Context) (int, error) {
	n, err := s.users.CountPeriodicEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("count periodic users: %w", err)
	}
	return n, nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		s.mu.Lock()
		wait := s.next.Sub(s.now())
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.mu.Lock()
		s.next = NextBoundary(s.now(), s.interval)
		s.mu.Unlock()

		s.cycles.Add(1)
		go func() {
			defer s.cycles.Done()
			_, _ = s.RunCycle(ctx)
		}()
	}
}

// RunCycle runs one guarded pass over every opted-in user. It returns
// domain.ErrSchedulerOverlap when a cycle is already running and ErrLockHeld
// when another instance owns the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleStats, error) {
	log := logger.FromContextOr(ctx, s.logger)
	if !s.runInProgress.CompareAndSwap(false, true) {
		metrics.SchedulerCyclesTotal.WithLabelValues("skipped_overlap").Inc()
		log.Info("periodic rematch cycle skipped, previous cycle still running")
		return CycleStats{}, domain.ErrSchedulerOverlap
	}
	defer s.runInProgress.Store(false)

	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		metrics.SchedulerCyclesTotal.WithLabelValues("error").Inc()
		return CycleStats{}, fmt.Errorf("acquire scheduler lock: %w", err)
	}
	if !ok {
		metrics.SchedulerCyclesTotal.WithLabelValues("skipped_locked").Inc()
		log.Info("periodic rematch cycle skipped, lock held elsewhere")
		return CycleStats{}, ErrLockHeld
	}
	defer release()

	stats, err := s.cycle(ctx)
	if err != nil {
		metrics.SchedulerCyclesTotal.WithLabelValues("error").Inc()
		log.Error("periodic rematch cycle failed", zap.Error(err))
		return stats, err
	}
	metrics.SchedulerCyclesTotal.WithLabelValues("completed").Inc()
	metrics.SchedulerCycleDuration.Observe(stats.FinishedAt.Sub(stats.StartedAt).Seconds())

	s.mu.Lock()
	s.lastCycle = &stats
	s.mu.Unlock()
	return stats, nil
}

// RunForUser re-matches every non-resolved lost and found report of userID.
// It bypasses the overlap guard.
func (s *Scheduler) RunForUser(ctx context.Context, userID string) (CycleStats, error) {
	stats := CycleStats{StartedAt: s.now().UTC(), Users: 1}
	err := s.runUser(ctx, userID, &stats)
	stats.FinishedAt = s.now().UTC()
	return stats, err
}

// RunForReport re-matches a single report. It bypasses the overlap guard.
func (s *Scheduler) RunForReport(ctx context.Context, kind report.Kind, id string) error {
	if _, err := s.matcher.RunForReport(ctx, kind, id); err != nil {
		return fmt.Errorf("rematch %s:%s: %w", kind, id, err)
	}
	return nil
}

func (s *Scheduler) cycle(ctx context.Context) (CycleStats, error) {
	log := logger.FromContextOr(ctx, s.logger)
	stats := CycleStats{StartedAt: s.now().UTC()}
	log.Info("periodic rematch cycle started")

	users, err := s.users.ListPeriodicEnabled(ctx)
	if err != nil {
		stats.FinishedAt = s.now().UTC()
		return stats, fmt.Errorf("list periodic users: %w", err)
	}
	for i := range users {
		if ctx.Err() != nil {
			break
		}
		stats.Users++
		if err := s.runUser(ctx, users[i].UserID(), &stats); err != nil {
			log.Warn("periodic rematch for user failed", zap.String("user_id", users[i].UserID()), zap.Error(err))
		}
	}
	stats.FinishedAt = s.now().UTC()
	log.Info("periodic rematch cycle completed",
		zap.Int("users", stats.Users),
		zap.Int("reports", stats.Reports),
		zap.Int("failures", stats.Failures),
		zap.Duration("duration", stats.FinishedAt.Sub(stats.StartedAt)),
	)
	return stats, nil
}

// runUser isolates per-report failures; only a listing failure is returned.
func (s *Scheduler) runUser(ctx context.Context, userID string, stats *CycleStats) error {
	reps, err := s.reports.ListForOwner(ctx, userID, report.KindLost, report.KindFound)
	if err != nil {
		stats.Failures++
		return fmt.Errorf("list reports of %s: %w", userID, err)
	}
	log := logger.FromContextOr(ctx, s.logger)
	for i := range reps {
		r := &reps[i]
		if r.Status().Terminal() {
			stats.Skipped++
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Reports++
		if _, err := s.matcher.RunForReport(ctx, r.Kind(), r.ID()); err != nil {
			stats.Failures++
			log.Warn("periodic rematch for report failed",
				zap.String("user_id", userID),
				zap.String("report", r.Ref()),
				zap.Error(err),
			)
		}
	}
	return nil
}
