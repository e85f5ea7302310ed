package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/lostmatch/internal/domain"
)

// Status is the review state of a persisted match.
type Status string

// Match review statuses.
const (
	StatusPendingClaim  Status = "pending_claim"
	StatusClaimApproved Status = "claim_approved"
	StatusUnderApproval Status = "under_approval"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPendingClaim, StatusClaimApproved, StatusUnderApproval}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	for _, v := range Statuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, domain.ErrInvalidStatus)
}

// MaxPerLostReport bounds persisted matches per lost report.
const MaxPerLostReport = 3

// Match is a persisted (lost, found) pairing. Score is fixed at creation;
// only the status changes afterwards.
type Match struct {
	id            string
	lostReportID  string
	foundReportID string
	score         float64
	status        Status
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates a pending match with a fresh id.
func New(lostReportID, foundReportID string, score float64, now time.Time) (Match, error) {
	if lostReportID == "" || foundReportID == "" {
		return Match{}, fmt.Errorf("lost and found report IDs are required: %w", domain.ErrValidation)
	}
	if score < 0 || score > 1 {
		return Match{}, fmt.Errorf("match score %.4f out of [0,1]: %w", score, domain.ErrValidation)
	}
	now = now.UTC()
	return Match{
		id:            uuid.NewString(),
		lostReportID:  lostReportID,
		foundReportID: foundReportID,
		score:         score,
		status:        StatusPendingClaim,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Reconstruct creates a Match without validation (storage hydration).
func Reconstruct(id, lostReportID, foundReportID string, score float64, status Status, createdAt, updatedAt time.Time) Match {
	return Match{
		id:            id,
		lostReportID:  lostReportID,
		foundReportID: foundReportID,
		score:         score,
		status:        status,
		createdAt:     createdAt.UTC(),
		updatedAt:     updatedAt.UTC(),
	}
}

// WithStatus returns a copy with the new status and update time.
func (m Match) WithStatus(s Status, now time.Time) Match {
	m.status = s
	m.updatedAt = now.UTC()
	return m
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.id }

// LostReportID returns the lost side of the pairing.
func (m *Match) LostReportID() string { return m.lostReportID }

// FoundReportID returns the found side of the pairing.
func (m *Match) FoundReportID() string { return m.foundReportID }

// Score returns the fused similarity in [0,1].
func (m *Match) Score() float64 { return m.score }

// Status returns the review status.
func (m *Match) Status() Status { return m.status }

// CreatedAt returns the creation time.
func (m *Match) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns the last status change time.
func (m *Match) UpdatedAt() time.Time { return m.updatedAt }
