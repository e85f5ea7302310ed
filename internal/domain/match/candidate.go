package match

import (
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// Candidate is a transient scored comparison result for one run.
// It is passed by value and never mutated once returned from a strategy.
type Candidate struct {
	ID             string
	Kind           report.Kind
	Similarity     float64
	TextSimilarity float64
	Confidence     float64
	MatchPoints    int
	CreatedAt      time.Time

	Name        string
	Category    string
	Description string
	OwnerUserID string
}

// CandidateFrom copies the document reference of r into an unscored candidate.
func CandidateFrom(r *report.Report) Candidate {
	return Candidate{
		ID:          r.ID(),
		Kind:        r.Kind(),
		CreatedAt:   r.CreatedAt(),
		Name:        r.Name(),
		Category:    r.Category(),
		Description: r.Description(),
		OwnerUserID: r.OwnerUserID(),
	}
}

// Clamp01 bounds v into [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
