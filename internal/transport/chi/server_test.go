package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	healthuc "github.com/kailas-cloud/lostmatch/internal/usecase/health"
	matchinguc "github.com/kailas-cloud/lostmatch/internal/usecase/matching"
	preferencesuc "github.com/kailas-cloud/lostmatch/internal/usecase/preferences"
	"github.com/kailas-cloud/lostmatch/internal/usecase/rematch"
)

type mockMatcher struct {
	runFn      func(ctx context.Context, kind report.Kind, id string) (matchinguc.Run, error)
	combinedFn func(ctx context.Context, foundID string) ([]dommatch.Candidate, error)
}

func (m *mockMatcher) RunForReport(ctx context.Context, kind report.Kind, id string) (matchinguc.Run, error) {
	if m.runFn != nil {
		return m.runFn(ctx, kind, id)
	}
	return matchinguc.Run{}, nil
}

func (m *mockMatcher) CombinedSearch(ctx context.Context, foundID string) ([]dommatch.Candidate, error) {
	if m.combinedFn != nil {
		return m.combinedFn(ctx, foundID)
	}
	return nil, nil
}

type mockRecords struct {
	byLostFn   func(ctx context.Context, lostID string) ([]dommatch.Match, error)
	byStatusFn func(ctx context.Context, status string) ([]dommatch.Match, error)
	getFn      func(ctx context.Context, id string) (dommatch.Match, error)
	updateFn   func(ctx context.Context, id, status string) (dommatch.Match, error)
}

func (m *mockRecords) ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error) {
	if m.byLostFn != nil {
		return m.byLostFn(ctx, lostID)
	}
	return nil, nil
}

func (m *mockRecords) ByStatus(ctx context.Context, status string) ([]dommatch.Match, error) {
	if m.byStatusFn != nil {
		return m.byStatusFn(ctx, status)
	}
	return nil, nil
}

func (m *mockRecords) Get(ctx context.Context, id string) (dommatch.Match, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return dommatch.Match{}, domain.ErrMatchNotFound
}

func (m *mockRecords) UpdateStatus(ctx context.Context, id, status string) (dommatch.Match, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}
	return dommatch.Match{}, domain.ErrMatchNotFound
}

type mockProjections struct {
	syncReportFn func(ctx context.Context, p report.Params) (report.Report, bool, error)
	deleteFn     func(ctx context.Context, kind report.Kind, id string) (int, error)
	syncUserFn   func(ctx context.Context, p domuser.Params) (domuser.Preferences, error)
}

func (m *mockProjections) SyncReport(ctx context.Context, p report.Params) (report.Report, bool, error) {
	if m.syncReportFn != nil {
		return m.syncReportFn(ctx, p)
	}
	return report.Reconstruct(p), true, nil
}

func (m *mockProjections) DeleteReport(ctx context.Context, kind report.Kind, id string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, id)
	}
	return 0, nil
}

func (m *mockProjections) SyncUser(ctx context.Context, p domuser.Params) (domuser.Preferences, error) {
	if m.syncUserFn != nil {
		return m.syncUserFn(ctx, p)
	}
	return domuser.Reconstruct(p), nil
}

type mockPreferences struct {
	statusFn  func(ctx context.Context, userID string) (preferencesuc.PeriodicStatus, error)
	updateFn  func(ctx context.Context, userID string, enabled *bool, threshold *float64) (preferencesuc.PeriodicStatus, error)
	triggerFn func(ctx context.Context, userID string) (rematch.CycleStats, error)
}

func (m *mockPreferences) Status(ctx context.Context, userID string) (preferencesuc.PeriodicStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, userID)
	}
	return preferencesuc.PeriodicStatus{}, domain.ErrUserNotFound
}

func (m *mockPreferences) UpdateSettings(
	ctx context.Context, userID string, enabled *bool, threshold *float64,
) (preferencesuc.PeriodicStatus, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, enabled, threshold)
	}
	return preferencesuc.PeriodicStatus{}, nil
}

func (m *mockPreferences) Trigger(ctx context.Context, userID string) (rematch.CycleStats, error) {
	if m.triggerFn != nil {
		return m.triggerFn(ctx, userID)
	}
	return rematch.CycleStats{}, nil
}

type mockScheduler struct {
	status     rematch.Status
	enabled    int
	cycleErr   error
	triggered  []string
	triggerErr error
}

func (m *mockScheduler) RunForReport(_ context.Context, kind report.Kind, id string) error {
	m.triggered = append(m.triggered, string(kind)+":"+id)
	return m.triggerErr
}

func (m *mockScheduler) RunCycle(context.Context) (rematch.CycleStats, error) {
	return rematch.CycleStats{Users: 2, Reports: 5}, m.cycleErr
}

func (m *mockScheduler) Status() rematch.Status                         { return m.status }
func (m *mockScheduler) CountEnabledUsers(context.Context) (int, error) { return m.enabled, nil }

type mockInbox struct {
	gotLimit int
	records  []domnotif.Record
}

func (m *mockInbox) List(_ context.Context, _ string, limit int) ([]domnotif.Record, error) {
	m.gotLimit = limit
	return m.records, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	matcher     *mockMatcher
	records     *mockRecords
	projections *mockProjections
	prefs       *mockPreferences
	scheduler   *mockScheduler
	inbox       *mockInbox
	health      *mockHealth
}

func newFixture() *fixture {
	return &fixture{
		matcher:     &mockMatcher{},
		records:     &mockRecords{},
		projections: &mockProjections{},
		prefs:       &mockPreferences{},
		scheduler:   &mockScheduler{},
		inbox:       &mockInbox{},
		health:      &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}},
	}
}

func (f *fixture) handler() http.Handler {
	s := NewServer(Services{
		Matching:    f.matcher,
		Matches:     f.records,
		Projections: f.projections,
		Preferences: f.prefs,
		Scheduler:   f.scheduler,
		Inbox:       f.inbox,
		Health:      f.health,
	}, nil)
	return HandlerWithOptions(s, ServerOptions{})
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestRunMatching(t *testing.T) {
	f := newFixture()
	f.matcher.runFn = func(_ context.Context, kind report.Kind, id string) (matchinguc.Run, error) {
		if kind != report.KindLost || id != "l1" {
			t.Errorf("unexpected run %s:%s", kind, id)
		}
		src := report.Reconstruct(report.Params{ID: id, Kind: kind, OwnerUserID: "u1"})
		return matchinguc.Run{
			Source:     src,
			Threshold:  0.15,
			Candidates: []dommatch.Candidate{{ID: "f1", Kind: report.KindFound, Similarity: 0.8, Confidence: 0.8}},
			Persisted: []dommatch.Match{
				dommatch.Reconstruct("m1", "l1", "f1", 0.8, dommatch.StatusPendingClaim, time.Unix(1, 0), time.Unix(1, 0)),
			},
			Notified: true,
		}, nil
	}
	rr := f.do(t, http.MethodPost, "/v1/reports/lost/l1/match", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "lost:l1" || len(resp.Candidates) != 1 || len(resp.Persisted) != 1 || !resp.Notified {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Persisted[0].Status != "pending_claim" {
		t.Errorf("persisted status = %q", resp.Persisted[0].Status)
	}
}

func TestRunMatching_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{"unknown kind", "/v1/reports/box/x/match", nil, http.StatusBadRequest, ErrorCodeInvalidReportKind},
		{"missing source", "/v1/reports/lost/l9/match", fmt.Errorf("load source: %w", domain.ErrReportNotFound),
			http.StatusNotFound, ErrorCodeReportNotFound},
		{"comparator down", "/v1/reports/found/f1/match", domain.ErrExternalServiceUnavailable,
			http.StatusBadGateway, ErrorCodeServiceUnavailable},
		{"unexpected", "/v1/reports/lost/l1/match", errors.New("redis: connection reset"),
			http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.matcher.runFn = func(context.Context, report.Kind, string) (matchinguc.Run, error) {
				return matchinguc.Run{}, tc.err
			}
			rr := f.do(t, http.MethodPost, tc.path, "")
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			e := decodeError(t, rr)
			if e.Code != tc.wantErr {
				t.Errorf("code = %s, want %s", e.Code, tc.wantErr)
			}
			if tc.wantCode == http.StatusInternalServerError && e.Message != "internal error" {
				t.Errorf("internal message leaked: %q", e.Message)
			}
		})
	}
}

func TestCombinedSearch(t *testing.T) {
	f := newFixture()
	f.matcher.combinedFn = func(_ context.Context, id string) ([]dommatch.Candidate, error) {
		if id != "f1" {
			t.Errorf("unexpected found id %s", id)
		}
		return []dommatch.Candidate{{ID: "l1", Kind: report.KindLost, Similarity: 0.7}, {ID: "l2", Kind: report.KindLost, Similarity: 0.4}}, nil
	}
	rr := f.do(t, http.MethodPost, "/v1/reports/found/f1/combined-search", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp CandidateListResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Total != 2 || resp.Items[0].ID != "l1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSyncReport_CreatesAndMatches(t *testing.T) {
	f := newFixture()
	var got report.Params
	f.projections.syncReportFn = func(_ context.Context, p report.Params) (report.Report, bool, error) {
		got = p
		return report.Reconstruct(p), true, nil
	}
	ran := false
	f.matcher.runFn = func(_ context.Context, kind report.Kind, id string) (matchinguc.Run, error) {
		ran = true
		return matchinguc.Run{Source: report.Reconstruct(report.Params{ID: id, Kind: kind})}, nil
	}
	body := `{"ownerUserId":"u1","name":"Wallet","description":"black leather",` +
		`"features":{"descriptors":"AAEC","descriptors_shape":[2,32],"keypoints_count":2,"image_shape":[480,640]}}`
	rr := f.do(t, http.MethodPut, "/v1/reports/lost/l1?match=true", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("Location") != "/v1/reports/lost/l1" {
		t.Errorf("location = %q", rr.Header().Get("Location"))
	}
	if got.Features == nil || got.Features.DescriptorsShape() != (report.Shape{2, 32}) {
		t.Errorf("features not mapped: %+v", got.Features)
	}
	if !ran {
		t.Error("expected matching run")
	}
	var resp SyncReportResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Report.HasFeatures || resp.Run == nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSyncReport_NoMatchByDefault(t *testing.T) {
	f := newFixture()
	f.projections.syncReportFn = func(_ context.Context, p report.Params) (report.Report, bool, error) {
		return report.Reconstruct(p), false, nil
	}
	f.matcher.runFn = func(context.Context, report.Kind, string) (matchinguc.Run, error) {
		t.Error("matching must not run without ?match=true")
		return matchinguc.Run{}, nil
	}
	rr := f.do(t, http.MethodPut, "/v1/reports/found/f1", `{"ownerUserId":"u2"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestSyncReport_BadInput(t *testing.T) {
	f := newFixture()
	if rr := f.do(t, http.MethodPut, "/v1/reports/lost/l1?match=maybe", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad query: status = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPut, "/v1/reports/lost/l1", `{not json`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d", rr.Code)
	}
}

func TestDeleteReport(t *testing.T) {
	f := newFixture()
	f.projections.deleteFn = func(_ context.Context, kind report.Kind, id string) (int, error) {
		if kind != report.KindLost || id != "l1" {
			t.Errorf("unexpected delete %s:%s", kind, id)
		}
		return 3, nil
	}
	rr := f.do(t, http.MethodDelete, "/v1/reports/lost/l1", "")
	var resp DeleteReportResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || resp.DeletedMatches != 3 {
		t.Errorf("status %d, resp %+v", rr.Code, resp)
	}
}

func TestMatchRecords(t *testing.T) {
	f := newFixture()
	m1 := dommatch.Reconstruct("m1", "l1", "f1", 0.9, dommatch.StatusPendingClaim, time.Unix(1, 0), time.Unix(1, 0))
	f.records.byLostFn = func(context.Context, string) ([]dommatch.Match, error) { return []dommatch.Match{m1}, nil }
	f.records.byStatusFn = func(_ context.Context, s string) ([]dommatch.Match, error) {
		if s != "pending_claim" {
			return nil, domain.ErrInvalidStatus
		}
		return []dommatch.Match{m1}, nil
	}

	rr := f.do(t, http.MethodGet, "/v1/matches/lost-report/l1", "")
	var list MatchListResponse
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if rr.Code != http.StatusOK || list.Total != 1 || list.Items[0].FoundReportID != "f1" {
		t.Errorf("by lost: status %d, %+v", rr.Code, list)
	}

	rr = f.do(t, http.MethodGet, "/v1/matches/status/approved", "")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != ErrorCodeInvalidStatus {
		t.Errorf("bad status: got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/matches/ghost", "")
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != ErrorCodeMatchNotFound {
		t.Errorf("missing match: got %d", rr.Code)
	}
}

func TestUpdateMatchStatus(t *testing.T) {
	f := newFixture()
	f.records.updateFn = func(_ context.Context, id, status string) (dommatch.Match, error) {
		s, err := dommatch.ParseStatus(status)
		if err != nil {
			return dommatch.Match{}, err
		}
		return dommatch.Reconstruct(id, "l1", "f1", 0.5, s, time.Unix(1, 0), time.Unix(2, 0)), nil
	}
	rr := f.do(t, http.MethodPut, "/v1/matches/m1/status", `{"status":"claim_approved"}`)
	var resp MatchResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || resp.Status != "claim_approved" || resp.Score != 0.5 {
		t.Errorf("status %d, %+v", rr.Code, resp)
	}

	rr = f.do(t, http.MethodPut, "/v1/matches/m1/status", `{"status":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d", rr.Code)
	}
}

func TestSyncUser(t *testing.T) {
	f := newFixture()
	var got domuser.Params
	f.projections.syncUserFn = func(_ context.Context, p domuser.Params) (domuser.Preferences, error) {
		got = p
		return domuser.New(p)
	}
	rr := f.do(t, http.MethodPut, "/v1/users/u1", `{"matchingThreshold":30,"periodicSearchEnabled":true,"active":true,"email":"a@b.c"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got.UserID != "u1" || got.MatchingThreshold == nil || *got.MatchingThreshold != 30 {
		t.Errorf("unexpected params %+v", got)
	}

	rr = f.do(t, http.MethodPut, "/v1/users/u1", `{"matchingThreshold":130}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != ErrorCodeValidationFailed {
		t.Errorf("out of range threshold: got %d", rr.Code)
	}
}

func TestPeriodicStatus(t *testing.T) {
	f := newFixture()
	next := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	th := 25
	f.prefs.statusFn = func(context.Context, string) (preferencesuc.PeriodicStatus, error) {
		return preferencesuc.PeriodicStatus{UserEnabled: true, ServiceRunning: true, NextRunTime: &next, MatchingThreshold: &th}, nil
	}
	rr := f.do(t, http.MethodGet, "/v1/users/u1/periodic-search", "")
	var resp PeriodicStatusResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || !resp.UserEnabled || !resp.NextRunTime.Equal(next) || *resp.MatchingThreshold != 25 {
		t.Errorf("status %d, %+v", rr.Code, resp)
	}

	f.prefs.statusFn = nil
	if rr := f.do(t, http.MethodGet, "/v1/users/ghost/periodic-search", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown user: got %d", rr.Code)
	}
}

func TestUpdatePeriodicSettings_Threshold(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantThreshold *float64
		wantEnabled   *bool
	}{
		{"number", `{"matchingThreshold":40}`, ptr(40.0), nil},
		{"string is ignored", `{"matchingThreshold":"40","periodicSearchEnabled":true}`, nil, ptr(true)},
		{"null is ignored", `{"matchingThreshold":null,"periodicSearchEnabled":false}`, nil, ptr(false)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.prefs.updateFn = func(_ context.Context, _ string, enabled *bool, threshold *float64) (preferencesuc.PeriodicStatus, error) {
				if !eqPtr(threshold, tc.wantThreshold) || !eqPtr(enabled, tc.wantEnabled) {
					t.Errorf("got enabled=%v threshold=%v", enabled, threshold)
				}
				return preferencesuc.PeriodicStatus{}, nil
			}
			if rr := f.do(t, http.MethodPut, "/v1/users/u1/periodic-search", tc.body); rr.Code != http.StatusOK {
				t.Errorf("status = %d", rr.Code)
			}
		})
	}
}

func TestUpdatePeriodicSettings_NothingValid(t *testing.T) {
	f := newFixture()
	f.prefs.updateFn = func(context.Context, string, *bool, *float64) (preferencesuc.PeriodicStatus, error) {
		return preferencesuc.PeriodicStatus{}, domain.ErrInvalidSettings
	}
	rr := f.do(t, http.MethodPut, "/v1/users/u1/periodic-search", `{"matchingThreshold":"high"}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != ErrorCodeInvalidSettings {
		t.Errorf("got %d", rr.Code)
	}
}

func TestTriggers(t *testing.T) {
	f := newFixture()
	f.prefs.triggerFn = func(context.Context, string) (rematch.CycleStats, error) {
		return rematch.CycleStats{Users: 1, Reports: 4}, nil
	}
	rr := f.do(t, http.MethodPost, "/v1/users/u1/periodic-search/trigger", "")
	var cyc CycleResponse
	_ = json.NewDecoder(rr.Body).Decode(&cyc)
	if rr.Code != http.StatusOK || cyc.Reports != 4 {
		t.Errorf("user trigger: %d %+v", rr.Code, cyc)
	}

	rr = f.do(t, http.MethodPost, "/v1/periodic-search/trigger/found/f1", "")
	if rr.Code != http.StatusAccepted || len(f.scheduler.triggered) != 1 || f.scheduler.triggered[0] != "found:f1" {
		t.Errorf("report trigger: %d %v", rr.Code, f.scheduler.triggered)
	}
}

func TestRunCycle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ran", nil, http.StatusOK},
		{"overlap", domain.ErrSchedulerOverlap, http.StatusConflict},
		{"locked elsewhere", rematch.ErrLockHeld, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.scheduler.cycleErr = tc.err
			if rr := f.do(t, http.MethodPost, "/v1/periodic-search/cycle", ""); rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestPeriodicStats(t *testing.T) {
	f := newFixture()
	next := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	f.scheduler.status = rematch.Status{
		Running: true, Interval: 6 * time.Hour, NextRunTime: &next,
		LastCycle: &rematch.CycleStats{Users: 3, Reports: 7},
	}
	f.scheduler.enabled = 3
	rr := f.do(t, http.MethodGet, "/v1/periodic-search/stats", "")
	var resp StatsResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.ServiceRunning || resp.UsersWithPeriodicSearchEnabled != 3 || resp.IntervalSeconds != 21600 {
		t.Errorf("unexpected stats %+v", resp)
	}
	if resp.LastCycle == nil || resp.LastCycle.Reports != 7 {
		t.Errorf("last cycle = %+v", resp.LastCycle)
	}
}

func TestListNotifications(t *testing.T) {
	f := newFixture()
	f.inbox.records = []domnotif.Record{{ID: "n2", Title: "t2"}, {ID: "n1", Title: "t1"}}

	rr := f.do(t, http.MethodGet, "/v1/users/u1/notifications", "")
	var resp NotificationListResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if rr.Code != http.StatusOK || resp.Total != 2 || f.inbox.gotLimit != defaultNotificationLimit {
		t.Errorf("default limit: %d %+v limit=%d", rr.Code, resp, f.inbox.gotLimit)
	}

	f.do(t, http.MethodGet, "/v1/users/u1/notifications?limit=5", "")
	if f.inbox.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", f.inbox.gotLimit)
	}
	if rr := f.do(t, http.MethodGet, "/v1/users/u1/notifications?limit=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/v1/users/u1/notifications?limit=0", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("zero limit: got %d", rr.Code)
	}
}

func TestStreamEvents_Disabled(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/v1/users/u1/events", "")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		f := newFixture()
		f.health.report = healthuc.Report{Status: tc.status, Checks: map[string]healthuc.CheckResult{"email": healthuc.CheckError}}
		rr := f.do(t, http.MethodGet, "/health", "")
		var resp HealthResponse
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if rr.Code != tc.want || resp.Status != string(tc.status) || resp.Checks["email"] != "error" {
			t.Errorf("%s: status %d, %+v", tc.status, rr.Code, resp)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
