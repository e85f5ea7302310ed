package lostmatch

import "time"

// Kind is the report side a call addresses.
type Kind string

// Report kinds accepted by the admin API.
const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
	KindItem  Kind = "item"
)

// Match statuses.
const (
	StatusPendingClaim  = "pending_claim"
	StatusClaimApproved = "claim_approved"
	StatusUnderApproval = "under_approval"
)

// Candidate is one ranked comparison result.
type Candidate struct {
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

// Match is a persisted lost/found pairing.
type Match struct {
	ID            string    `json:"id"`
	LostReportID  string    `json:"lostReportId"`
	FoundReportID string    `json:"foundReportId"`
	Score         float64   `json:"score"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Run is the outcome of one matching run.
type Run struct {
	Source     string      `json:"source"`
	Threshold  float64     `json:"threshold"`
	Candidates []Candidate `json:"candidates"`
	Persisted  []Match     `json:"persisted"`
	Notified   bool        `json:"notified"`
}

// PeriodicStatus describes periodic search for one user.
type PeriodicStatus struct {
	UserEnabled       bool       `json:"userEnabled"`
	ServiceRunning    bool       `json:"serviceRunning"`
	NextRunTime       *time.Time `json:"nextRunTime"`
	MatchingThreshold *int       `json:"matchingThreshold"`
}

// Settings is a partial update of a user's periodic search preferences.
// Nil fields are left untouched.
type Settings struct {
	Enabled   *bool    `json:"periodicSearchEnabled,omitempty"`
	Threshold *float64 `json:"matchingThreshold,omitempty"`
}

// Cycle summarizes a periodic search pass.
type Cycle struct {
	Users      int       `json:"users"`
	Reports    int       `json:"reports"`
	Failures   int       `json:"failures"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Stats describes the periodic scheduler.
type Stats struct {
	ServiceRunning                 bool       `json:"serviceRunning"`
	CycleInProgress                bool       `json:"cycleInProgress"`
	IntervalSeconds                int64      `json:"intervalSeconds"`
	NextRunTime                    *time.Time `json:"nextRunTime"`
	UsersWithPeriodicSearchEnabled int        `json:"usersWithPeriodicSearchEnabled"`
	LastCycle                      *Cycle     `json:"lastCycle,omitempty"`
}

// Notification is one in-app notification.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthStatus is the aggregated service health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"`
}

type listEnvelope[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
