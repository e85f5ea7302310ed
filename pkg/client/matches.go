package lostmatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// MatchService runs matching and manages persisted matches.
type MatchService struct {
	c *Client
}

// Run matches one report against the opposite side and returns the ranked outcome.
func (s *MatchService) Run(ctx context.Context, kind Kind, reportID string) (_ Run, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.run", start, err) }()

	var run Run
	if err = s.c.do(ctx, http.MethodPost, reportPath(kind, reportID)+"/match", nil, nil, &run); err != nil {
		return Run{}, fmt.Errorf("run matching: %w", err)
	}
	return run, nil
}

// CombinedSearch ranks lost reports against a found report using image and text similarity.
// Nothing is persisted.
func (s *MatchService) CombinedSearch(ctx context.Context, foundID string) (_ []Candidate, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.combined_search", start, err) }()

	var out listEnvelope[Candidate]
	if err = s.c.do(ctx, http.MethodPost, reportPath(KindFound, foundID)+"/combined-search", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("combined search: %w", err)
	}
	return out.Items, nil
}

// ByLostReport lists the persisted matches of a lost report, best first.
func (s *MatchService) ByLostReport(ctx context.Context, lostID string) (_ []Match, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.by_lost_report", start, err) }()

	var out listEnvelope[Match]
	if err = s.c.do(ctx, http.MethodGet, "/v1/matches/lost-report/"+url.PathEscape(lostID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out.Items, nil
}

// ByStatus lists every persisted match in status.
func (s *MatchService) ByStatus(ctx context.Context, status string) (_ []Match, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.by_status", start, err) }()

	var out listEnvelope[Match]
	if err = s.c.do(ctx, http.MethodGet, "/v1/matches/status/"+url.PathEscape(status), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out.Items, nil
}

// Get fetches one match.
func (s *MatchService) Get(ctx context.Context, matchID string) (_ Match, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.get", start, err) }()

	var m Match
	if err = s.c.do(ctx, http.MethodGet, "/v1/matches/"+url.PathEscape(matchID), nil, nil, &m); err != nil {
		return Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// SetStatus moves a match to status and returns the updated row.
func (s *MatchService) SetStatus(ctx context.Context, matchID, status string) (_ Match, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("match.set_status", start, err) }()

	body := struct {
		Status string `json:"status"`
	}{Status: status}
	var m Match
	if err = s.c.do(ctx, http.MethodPut, "/v1/matches/"+url.PathEscape(matchID)+"/status", nil, body, &m); err != nil {
		return Match{}, fmt.Errorf("set match status: %w", err)
	}
	return m, nil
}

func reportPath(kind Kind, id string) string {
	return "/v1/reports/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
}
