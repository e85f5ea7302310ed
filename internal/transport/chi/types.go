package chi

import (
	"encoding/json"
	"time"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned by the admin API.
const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeInvalidStatus       ErrorCode = "invalid_status"
	ErrorCodeInvalidReportKind   ErrorCode = "invalid_report_kind"
	ErrorCodeInvalidSettings     ErrorCode = "invalid_settings"
	ErrorCodeReportNotFound      ErrorCode = "report_not_found"
	ErrorCodeMatchNotFound       ErrorCode = "match_not_found"
	ErrorCodeUserNotFound        ErrorCode = "user_not_found"
	ErrorCodeSchedulerBusy       ErrorCode = "scheduler_busy"
	ErrorCodeConflict            ErrorCode = "conflict"
	ErrorCodeServiceUnavailable  ErrorCode = "external_service_unavailable"
	ErrorCodeRealtimeUnavailable ErrorCode = "realtime_unavailable"
	ErrorCodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FeaturesPayload is the image feature bundle produced by the extractor.
type FeaturesPayload struct {
	Descriptors      string            `json:"descriptors"`
	DescriptorsShape []int             `json:"descriptors_shape,omitempty"`
	KeypointsCount   int               `json:"keypoints_count"`
	Keypoints        []json.RawMessage `json:"keypoints,omitempty"`
	ImageShape       []int             `json:"image_shape,omitempty"`
}

// ReportRequest is the body of PUT /v1/reports/{kind}/{id}.
type ReportRequest struct {
	OwnerUserID string           `json:"ownerUserId"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Features    *FeaturesPayload `json:"features,omitempty"`
	CreatedAt   *time.Time       `json:"createdAt,omitempty"`
}

// ReportResponse describes a stored report projection.
type ReportResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	OwnerUserID string    `json:"ownerUserId"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	HasFeatures bool      `json:"hasFeatures"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SyncReportResponse is returned after a report sync, with the run when one was requested.
type SyncReportResponse struct {
	Report ReportResponse `json:"report"`
	Run    *RunResponse   `json:"run,omitempty"`
}

// CandidateResponse is one ranked candidate.
type CandidateResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Similarity     float64   `json:"similarity"`
	TextSimilarity float64   `json:"textSimilarity,omitempty"`
	Confidence     float64   `json:"confidence"`
	MatchPoints    int       `json:"matchPoints"`
	Name           string    `json:"name,omitempty"`
	Category       string    `json:"category,omitempty"`
	OwnerUserID    string    `json:"ownerUserId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RunResponse is the outcome of one matching run.
type RunResponse struct {
	Source     string              `json:"source"`
	Threshold  float64             `json:"threshold"`
	Candidates []CandidateResponse `json:"candidates"`
	Persisted  []MatchResponse     `json:"persisted"`
	Notified   bool                `json:"notified"`
}

// CandidateListResponse is returned by combined search.
type CandidateListResponse struct {
	Items []CandidateResponse `json:"items"`
	Total int                 `json:"total"`
}

// MatchResponse is one persisted match.
type MatchResponse struct {
	ID            string    `json:"id"`
	LostReportID  string    `json:"lostReportId"`
	FoundReportID string    `json:"foundReportId"`
	Score         float64   `json:"score"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MatchListResponse wraps a list of matches.
type MatchListResponse struct {
	Items []MatchResponse `json:"items"`
	Total int             `json:"total"`
}

// StatusUpdateRequest is the body of PUT /v1/matches/{matchId}/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// DeleteReportResponse reports how many matches were removed.
type DeleteReportResponse struct {
	DeletedMatches int `json:"deletedMatches"`
}

// UserRequest is the body of PUT /v1/users/{id}.
type UserRequest struct {
	MatchingThreshold     *int   `json:"matchingThreshold,omitempty"`
	PeriodicSearchEnabled bool   `json:"periodicSearchEnabled"`
	MatchAlertsEnabled    *bool  `json:"matchAlertsEnabled,omitempty"`
	Active                bool   `json:"active"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
}

// SettingsRequest is the body of PUT /v1/users/{id}/periodic-search.
// The threshold is decoded loosely: anything that is not a number in 0..100 is ignored.
type SettingsRequest struct {
	PeriodicSearchEnabled *bool           `json:"periodicSearchEnabled,omitempty"`
	MatchingThreshold     json.RawMessage `json:"matchingThreshold,omitempty"`
}

// PeriodicStatusResponse describes periodic search for one user.
type PeriodicStatusResponse struct {
	UserEnabled       bool       `json:"userEnabled"`
	ServiceRunning    bool       `json:"serviceRunning"`
	NextRunTime       *time.Time `json:"nextRunTime"`
	MatchingThreshold *int       `json:"matchingThreshold"`
}

// CycleResponse summarizes a periodic search pass.
type CycleResponse struct {
	Users      int       `json:"users"`
	Reports    int       `json:"reports"`
	Failures   int       `json:"failures"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// StatsResponse describes the scheduler.
type StatsResponse struct {
	ServiceRunning                 bool           `json:"serviceRunning"`
	CycleInProgress                bool           `json:"cycleInProgress"`
	IntervalSeconds                int64          `json:"intervalSeconds"`
	NextRunTime                    *time.Time     `json:"nextRunTime"`
	UsersWithPeriodicSearchEnabled int            `json:"usersWithPeriodicSearchEnabled"`
	LastCycle                      *CycleResponse `json:"lastCycle,omitempty"`
}

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationListResponse wraps in-app notifications, newest first.
type NotificationListResponse struct {
	Items []NotificationResponse `json:"items"`
	Total int                    `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
