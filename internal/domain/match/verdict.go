package match

import "strings"

// ImageVerdict is the image comparator's answer for one feature pair.
// Similarity is already normalized to [0,1].
type ImageVerdict struct {
	Similarity      float64
	ConfidenceLabel string
	GoodMatches     int
	TotalMatches    int
	MatchRatio      float64
}

// Confidence maps the comparator's label to a numeric confidence.
func (v ImageVerdict) Confidence() float64 {
	return ConfidenceFromLabel(v.ConfidenceLabel)
}

// ConfidenceFromLabel maps high/medium/low (any case) to 0.8/0.5/0.2; anything else is 0.3.
func ConfidenceFromLabel(label string) float64 {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return 0.8
	case "medium":
		return 0.5
	case "low":
		return 0.2
	default:
		return 0.3
	}
}
