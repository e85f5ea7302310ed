package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const (
	checkDatabase    = "database"
	defaultCheckWait = 5 * time.Second
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedCheck struct {
	name    string
	checker Checker
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	checks  []namedCheck
	timeout time.Duration
}

// New creates a Service.
func New(db DBPinger) *Service {
	return &Service{db: db, timeout: defaultCheckWait}
}

// WithCheck adds a named dependency check. A nil checker is ignored.
func (s *Service) WithCheck(name string, c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, namedCheck{name: name, checker: c})
	}
	return s
}

// WithTimeout bounds every individual check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all health checks concurrently. A database failure makes the
// service unhealthy; any other failure degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks)+1)
	var mu sync.Mutex
	record := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		record(checkDatabase, s.db.Ping(cctx))
		return nil
	})
	for _, c := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			record(c.name, c.checker.HealthCheck(cctx))
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[checkDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
