package chi

import (
	"encoding/json"
	"math"
	"time"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
	matchinguc "github.com/kailas-cloud/lostmatch/internal/usecase/matching"
	preferencesuc "github.com/kailas-cloud/lostmatch/internal/usecase/preferences"
	"github.com/kailas-cloud/lostmatch/internal/usecase/rematch"
)

func reportParamsFromRequest(kind report.Kind, id string, req *ReportRequest) report.Params {
	p := report.Params{
		ID:          id,
		Kind:        kind,
		OwnerUserID: req.OwnerUserID,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Status:      report.Status(req.Status),
	}
	if req.CreatedAt != nil {
		p.CreatedAt = req.CreatedAt.UTC()
	}
	if f := req.Features; f != nil && f.Descriptors != "" {
		fb := report.NewFeatureBundle(
			f.Descriptors, shapeOf(f.DescriptorsShape), f.KeypointsCount, f.Keypoints, shapeOf(f.ImageShape),
		)
		p.Features = &fb
	}
	return p
}

func shapeOf(v []int) report.Shape {
	if len(v) != 2 {
		return report.Shape{}
	}
	return report.Shape{v[0], v[1]}
}

// looseNumber decodes raw as a JSON number. Strings, booleans and null yield nil.
func looseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

func reportToResponse(r *report.Report) ReportResponse {
	_, hasFeatures := r.Features()
	return ReportResponse{
		ID:          r.ID(),
		Kind:        string(r.Kind()),
		OwnerUserID: r.OwnerUserID(),
		Name:        r.Name(),
		Category:    r.Category(),
		Status:      string(r.Status()),
		HasFeatures: hasFeatures,
		CreatedAt:   r.CreatedAt().UTC(),
	}
}

func candidatesToResponse(cs []dommatch.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, len(cs))
	for i := range cs {
		c := &cs[i]
		out[i] = CandidateResponse{
			ID:             c.ID,
			Kind:           string(c.Kind),
			Similarity:     c.Similarity,
			TextSimilarity: c.TextSimilarity,
			Confidence:     c.Confidence,
			MatchPoints:    c.MatchPoints,
			Name:           c.Name,
			Category:       c.Category,
			OwnerUserID:    c.OwnerUserID,
			CreatedAt:      c.CreatedAt.UTC(),
		}
	}
	return out
}

func runToResponse(run *matchinguc.Run) RunResponse {
	persisted := make([]MatchResponse, len(run.Persisted))
	for i := range run.Persisted {
		persisted[i] = matchToResponse(&run.Persisted[i])
	}
	return RunResponse{
		Source:     run.Source.Ref(),
		Threshold:  run.Threshold,
		Candidates: candidatesToResponse(run.Candidates),
		Persisted:  persisted,
		Notified:   run.Notified,
	}
}

func matchToResponse(m *dommatch.Match) MatchResponse {
	return MatchResponse{
		ID:            m.ID(),
		LostReportID:  m.LostReportID(),
		FoundReportID: m.FoundReportID(),
		Score:         m.Score(),
		Status:        string(m.Status()),
		CreatedAt:     m.CreatedAt().UTC(),
		UpdatedAt:     m.UpdatedAt().UTC(),
	}
}

func matchListToResponse(ms []dommatch.Match) MatchListResponse {
	items := make([]MatchResponse, len(ms))
	for i := range ms {
		items[i] = matchToResponse(&ms[i])
	}
	return MatchListResponse{Items: items, Total: len(items)}
}

func periodicStatusToResponse(st preferencesuc.PeriodicStatus) PeriodicStatusResponse {
	return PeriodicStatusResponse{
		UserEnabled:       st.UserEnabled,
		ServiceRunning:    st.ServiceRunning,
		NextRunTime:       utcPtr(st.NextRunTime),
		MatchingThreshold: st.MatchingThreshold,
	}
}

func cycleToResponse(c *rematch.CycleStats) CycleResponse {
	return CycleResponse{
		Users:      c.Users,
		Reports:    c.Reports,
		Failures:   c.Failures,
		Skipped:    c.Skipped,
		StartedAt:  c.StartedAt.UTC(),
		FinishedAt: c.FinishedAt.UTC(),
	}
}

func notificationToResponse(r *domnotif.Record) NotificationResponse {
	return NotificationResponse{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Type:      r.Type,
		Link:      r.Link,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
