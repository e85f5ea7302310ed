package match

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// matchJSON is the stored form of a match inside the lost report hash.
type matchJSON struct {
	ID            string    `json:"id"`
	LostReportID  string    `json:"lostReportId"`
	FoundReportID string    `json:"foundReportId"`
	Score         float64   `json:"matchScore"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func encodeMatch(m *dommatch.Match) (string, error) {
	data, err := json.Marshal(matchJSON{
		ID:            m.ID(),
		LostReportID:  m.LostReportID(),
		FoundReportID: m.FoundReportID(),
		Score:         m.Score(),
		Status:        string(m.Status()),
		CreatedAt:     m.CreatedAt(),
		UpdatedAt:     m.UpdatedAt(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal match %s: %w", m.ID(), err)
	}
	return string(data), nil
}

func decodeMatch(raw string) (dommatch.Match, error) {
	var j matchJSON
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return dommatch.Match{}, fmt.Errorf("unmarshal match: %w", err)
	}
	return dommatch.Reconstruct(
		j.ID, j.LostReportID, j.FoundReportID, j.Score,
		dommatch.Status(j.Status), j.CreatedAt, j.UpdatedAt,
	), nil
}

// matchRef is the "lostId/matchId" member stored in secondary indexes.
func matchRef(lostID, matchID string) string {
	return lostID + "/" + matchID
}

func parseMatchRef(ref string) (lostID, matchID string, ok bool) {
	lostID, matchID, ok = strings.Cut(ref, "/")
	return lostID, matchID, ok && lostID != "" && matchID != ""
}
