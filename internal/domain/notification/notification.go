package notification

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// TypeMatch is the record type for match notifications.
const TypeMatch = "match"

// MatchSummary describes one notified match.
type MatchSummary struct {
	CandidateID string
	Kind        report.Kind
	Similarity  float64
	Confidence  float64
	MatchPoints int
}

// Event is one "matches found" notification for a single recipient.
type Event struct {
	RecipientUserID string
	ReportID        string
	ReportType      report.Kind
	Matches         []MatchSummary
	Timestamp       time.Time
}

// MatchCount returns the number of matches carried by the event.
func (e Event) MatchCount() int { return len(e.Matches) }

// TopSimilarity returns the best similarity, 0 when empty.
func (e Event) TopSimilarity() float64 {
	if len(e.Matches) == 0 {
		return 0
	}
	return e.Matches[0].Similarity
}

// Percent renders a [0,1] score as a rounded percentage.
func Percent(v float64) int { return int(math.Round(v * 100)) }

// Plural returns "match" or "matches" for n.
func Plural(n int) string {
	if n == 1 {
		return "match"
	}
	return "matches"
}

// Title is the in-app headline for the event.
func (e Event) Title() string {
	n := e.MatchCount()
	return fmt.Sprintf("%d potential %s found!", n, Plural(n))
}

// Content is the in-app body for the event.
func (e Event) Content() string {
	n := e.MatchCount()
	return fmt.Sprintf("We found %d potential %s for your %s report. Best match: %d%% similarity.",
		n, Plural(n), e.ReportType, Percent(e.TopSimilarity()))
}

// Link is the relative link to the match listing.
func (e Event) Link() string { return "/matches/" + e.ReportID }

// Record is a stored in-app notification.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordFor builds the in-app record for e.
func RecordFor(id string, e Event, now time.Time) Record {
	return Record{
		ID:        id,
		UserID:    e.RecipientUserID,
		Title:     e.Title(),
		Content:   e.Content(),
		Type:      TypeMatch,
		Link:      e.Link(),
		CreatedAt: now.UTC(),
	}
}

// Realtime is the payload pushed on the match_found stream event.
// TopMatchScore is a percentage.
type Realtime struct {
	ReportID      string      `json:"reportId"`
	ReportType    report.Kind `json:"reportType"`
	MatchCount    int         `json:"matchCount"`
	TopMatchScore int         `json:"topMatchScore"`
}

// RealtimeFor builds the realtime payload for e.
func RealtimeFor(e Event) Realtime {
	return Realtime{
		ReportID:      e.ReportID,
		ReportType:    e.ReportType,
		MatchCount:    e.MatchCount(),
		TopMatchScore: Percent(e.TopSimilarity()),
	}
}

// Email is a rendered HTML email.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// EmailSubject is the subject line of a match email.
func (e Event) EmailSubject() string {
	return fmt.Sprintf("Potential matches found for your %s report!", e.ReportType)
}
