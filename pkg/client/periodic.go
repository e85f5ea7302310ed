package lostmatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PeriodicService inspects and drives periodic re-matching.
type PeriodicService struct {
	c *Client
}

// Status returns the periodic search state of userID.
func (s *PeriodicService) Status(ctx context.Context, userID string) (_ PeriodicStatus, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.status", start, err) }()

	var st PeriodicStatus
	if err = s.c.do(ctx, http.MethodGet, userPath(userID)+"/periodic-search", nil, nil, &st); err != nil {
		return PeriodicStatus{}, fmt.Errorf("periodic status: %w", err)
	}
	return st, nil
}

// Set updates the periodic search preferences of userID.
// Threshold is a percentage in 0..100; the server ignores anything else.
func (s *PeriodicService) Set(ctx context.Context, userID string, in Settings) (_ PeriodicStatus, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.set", start, err) }()

	var st PeriodicStatus
	if err = s.c.do(ctx, http.MethodPut, userPath(userID)+"/periodic-search", nil, in, &st); err != nil {
		return PeriodicStatus{}, fmt.Errorf("update periodic settings: %w", err)
	}
	return st, nil
}

// TriggerUser re-matches every open lost report of userID now.
func (s *PeriodicService) TriggerUser(ctx context.Context, userID string) (_ Cycle, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.trigger_user", start, err) }()

	var cy Cycle
	if err = s.c.do(ctx, http.MethodPost, userPath(userID)+"/periodic-search/trigger", nil, nil, &cy); err != nil {
		return Cycle{}, fmt.Errorf("trigger user: %w", err)
	}
	return cy, nil
}

// TriggerReport queues a matching run for one report. The server answers before it finishes.
func (s *PeriodicService) TriggerReport(ctx context.Context, kind Kind, reportID string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.trigger_report", start, err) }()

	path := "/v1/periodic-search/trigger/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(reportID)
	if err = s.c.do(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return fmt.Errorf("trigger report: %w", err)
	}
	return nil
}

// Cycle runs one full periodic pass and waits for it.
// Fails with ErrSchedulerOverlap when a pass is already running.
func (s *PeriodicService) Cycle(ctx context.Context) (_ Cycle, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.cycle", start, err) }()

	var cy Cycle
	if err = s.c.do(ctx, http.MethodPost, "/v1/periodic-search/cycle", nil, nil, &cy); err != nil {
		return Cycle{}, fmt.Errorf("run cycle: %w", err)
	}
	return cy, nil
}

// Stats describes the scheduler.
func (s *PeriodicService) Stats(ctx context.Context) (_ Stats, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("periodic.stats", start, err) }()

	var st Stats
	if err = s.c.do(ctx, http.MethodGet, "/v1/periodic-search/stats", nil, nil, &st); err != nil {
		return Stats{}, fmt.Errorf("periodic stats: %w", err)
	}
	return st, nil
}

func userPath(id string) string {
	return "/v1/users/" + url.PathEscape(id)
}
