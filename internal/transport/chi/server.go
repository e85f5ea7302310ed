package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

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

const defaultNotificationLimit = 50

// Matcher runs matching on demand.
type Matcher interface {
	RunForReport(ctx context.Context, kind report.Kind, id string) (matchinguc.Run, error)
	CombinedSearch(ctx context.Context, foundID string) ([]dommatch.Candidate, error)
}

// MatchRecords reads and updates persisted matches.
type MatchRecords interface {
	ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error)
	ByStatus(ctx context.Context, status string) ([]dommatch.Match, error)
	Get(ctx context.Context, matchID string) (dommatch.Match, error)
	UpdateStatus(ctx context.Context, matchID, status string) (dommatch.Match, error)
}

// Projections keeps the report and user read models in sync.
type Projections interface {
	SyncReport(ctx context.Context, p report.Params) (report.Report, bool, error)
	DeleteReport(ctx context.Context, kind report.Kind, id string) (int, error)
	SyncUser(ctx context.Context, p domuser.Params) (domuser.Preferences, error)
}

// Preferences manages periodic search per user.
type Preferences interface {
	Status(ctx context.Context, userID string) (preferencesuc.PeriodicStatus, error)
	UpdateSettings(ctx context.Context, userID string, enabled *bool, threshold *float64) (preferencesuc.PeriodicStatus, error)
	Trigger(ctx context.Context, userID string) (rematch.CycleStats, error)
}

// Scheduler is the periodic rematch scheduler.
type Scheduler interface {
	RunForReport(ctx context.Context, kind report.Kind, id string) error
	RunCycle(ctx context.Context) (rematch.CycleStats, error)
	Status() rematch.Status
	CountEnabledUsers(ctx context.Context) (int, error)
}

// Inbox lists in-app notifications.
type Inbox interface {
	List(ctx context.Context, userID string, limit int) ([]domnotif.Record, error)
}

// EventStream serves a realtime stream for one user.
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Services groups the usecases behind the admin API. Events may be nil when
// realtime delivery is disabled.
type Services struct {
	Matching    Matcher
	Matches     MatchRecords
	Projections Projections
	Preferences Preferences
	Scheduler   Scheduler
	Inbox       Inbox
	Events      EventStream
	Health      HealthChecker
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the admin HTTP API.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrReportNotFound, http.StatusNotFound, ErrorCodeReportNotFound),
		sentinelHandler(domain.ErrMatchNotFound, http.StatusNotFound, ErrorCodeMatchNotFound),
		sentinelHandler(domain.ErrUserNotFound, http.StatusNotFound, ErrorCodeUserNotFound),
		sentinelHandler(domain.ErrInvalidSettings, http.StatusBadRequest, ErrorCodeInvalidSettings),
		sentinelHandler(domain.ErrInvalidStatus, http.StatusBadRequest, ErrorCodeInvalidStatus),
		sentinelHandler(domain.ErrInvalidReportKind, http.StatusBadRequest, ErrorCodeInvalidReportKind),
		validationHandler,
		sentinelHandler(domain.ErrSchedulerOverlap, http.StatusConflict, ErrorCodeSchedulerBusy),
		sentinelHandler(rematch.ErrLockHeld, http.StatusConflict, ErrorCodeSchedulerBusy),
		sentinelHandler(domain.ErrPersistenceConflict, http.StatusConflict, ErrorCodeConflict),
		sentinelHandler(domain.ErrExternalServiceUnavailable, http.StatusBadGateway, ErrorCodeServiceUnavailable),
	}
	return s
}

// RunMatching handles POST /v1/reports/{kind}/{id}/match.
func (s *Server) RunMatching(w http.ResponseWriter, r *http.Request, kind, id string) {
	k, err := report.ParseKind(kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	run, err := s.svc.Matching.RunForReport(r.Context(), k, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(&run))
}

// CombinedSearch handles POST /v1/reports/found/{id}/combined-search.
func (s *Server) CombinedSearch(w http.ResponseWriter, r *http.Request, id string) {
	cands, err := s.svc.Matching.CombinedSearch(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := candidatesToResponse(cands)
	writeJSON(w, http.StatusOK, CandidateListResponse{Items: items, Total: len(items)})
}

// SyncReport handles PUT /v1/reports/{kind}/{id}.
func (s *Server) SyncReport(w http.ResponseWriter, r *http.Request, kind, id string, params SyncReportParams) {
	k, err := report.ParseKind(kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rep, created, err := s.svc.Projections.SyncReport(r.Context(), reportParamsFromRequest(k, id, &req))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	resp := SyncReportResponse{Report: reportToResponse(&rep)}

	if params.Match != nil && *params.Match && k != report.KindItem {
		run, err := s.svc.Matching.RunForReport(r.Context(), k, id)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		rr := runToResponse(&run)
		resp.Run = &rr
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/v1/reports/%s/%s", k, id))
	}
	writeJSON(w, status, resp)
}

// DeleteReport handles DELETE /v1/reports/{kind}/{id}.
func (s *Server) DeleteReport(w http.ResponseWriter, r *http.Request, kind, id string) {
	k, err := report.ParseKind(kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	n, err := s.svc.Projections.DeleteReport(r.Context(), k, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteReportResponse{DeletedMatches: n})
}

// ListMatchesByLostReport handles GET /v1/matches/lost-report/{id}.
func (s *Server) ListMatchesByLostReport(w http.ResponseWriter, r *http.Request, id string) {
	ms, err := s.svc.Matches.ByLostReport(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchListToResponse(ms))
}

// ListMatchesByStatus handles GET /v1/matches/status/{status}.
func (s *Server) ListMatchesByStatus(w http.ResponseWriter, r *http.Request, status string) {
	ms, err := s.svc.Matches.ByStatus(r.Context(), status)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchListToResponse(ms))
}

// GetMatch handles GET /v1/matches/{matchId}.
func (s *Server) GetMatch(w http.ResponseWriter, r *http.Request, matchID string) {
	m, err := s.svc.Matches.Get(r.Context(), matchID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchToResponse(&m))
}

// UpdateMatchStatus handles PUT /v1/matches/{matchId}/status.
func (s *Server) UpdateMatchStatus(w http.ResponseWriter, r *http.Request, matchID string) {
	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	m, err := s.svc.Matches.UpdateStatus(r.Context(), matchID, req.Status)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchToResponse(&m))
}

// SyncUser handles PUT /v1/users/{id}.
func (s *Server) SyncUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	_, err := s.svc.Projections.SyncUser(r.Context(), domuser.Params{
		UserID:                userID,
		MatchingThreshold:     req.MatchingThreshold,
		PeriodicSearchEnabled: req.PeriodicSearchEnabled,
		MatchAlertsEnabled:    req.MatchAlertsEnabled,
		Active:                req.Active,
		Email:                 req.Email,
		Name:                  req.Name,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPeriodicStatus handles GET /v1/users/{id}/periodic-search.
func (s *Server) GetPeriodicStatus(w http.ResponseWriter, r *http.Request, userID string) {
	st, err := s.svc.Preferences.Status(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periodicStatusToResponse(st))
}

// UpdatePeriodicSettings handles PUT /v1/users/{id}/periodic-search.
func (s *Server) UpdatePeriodicSettings(w http.ResponseWriter, r *http.Request, userID string) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	st, err := s.svc.Preferences.UpdateSettings(r.Context(), userID, req.PeriodicSearchEnabled, looseNumber(req.MatchingThreshold))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periodicStatusToResponse(st))
}

// TriggerForUser handles POST /v1/users/{id}/periodic-search/trigger.
func (s *Server) TriggerForUser(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := s.svc.Preferences.Trigger(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleToResponse(&stats))
}

// TriggerForReport handles POST /v1/periodic-search/trigger/{kind}/{id}.
func (s *Server) TriggerForReport(w http.ResponseWriter, r *http.Request, kind, id string) {
	k, err := report.ParseKind(kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := s.svc.Scheduler.RunForReport(r.Context(), k, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RunCycle handles POST /v1/periodic-search/cycle.
func (s *Server) RunCycle(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Scheduler.RunCycle(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleToResponse(&stats))
}

// PeriodicStats handles GET /v1/periodic-search/stats.
func (s *Server) PeriodicStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Scheduler.CountEnabledUsers(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	st := s.svc.Scheduler.Status()
	resp := StatsResponse{
		ServiceRunning:                 st.Running,
		CycleInProgress:                st.CycleInProgress,
		IntervalSeconds:                int64(st.Interval.Seconds()),
		NextRunTime:                    st.NextRunTime,
		UsersWithPeriodicSearchEnabled: n,
	}
	if st.LastCycle != nil {
		c := cycleToResponse(st.LastCycle)
		resp.LastCycle = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListNotifications handles GET /v1/users/{id}/notifications.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request, userID string, params ListNotificationsParams) {
	limit := defaultNotificationLimit
	if params.Limit != nil {
		if *params.Limit <= 0 {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be positive")
			return
		}
		limit = *params.Limit
	}
	recs, err := s.svc.Inbox.List(r.Context(), userID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]NotificationResponse, len(recs))
	for i := range recs {
		items[i] = notificationToResponse(&recs[i])
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Items: items, Total: len(items)})
}

// StreamEvents handles GET /v1/users/{id}/events.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request, userID string) {
	if s.svc.Events == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeRealtimeUnavailable, "realtime delivery is disabled")
		return
	}
	s.svc.Events.Serve(w, r, userID)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	hr := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(hr.Checks))
	for k, v := range hr.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if hr.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(hr.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a message for the client without exposing internals.
// Validation errors carry caller input, so their full text is returned.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrReportNotFound,
		domain.ErrMatchNotFound,
		domain.ErrUserNotFound,
		domain.ErrSchedulerOverlap,
		rematch.ErrLockHeld,
		domain.ErrPersistenceConflict,
		domain.ErrExternalServiceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
