// Package ranking filters, fuses and orders scored candidates. It is pure:
// the same input always yields the same output and nothing is mutated.
package ranking

import (
	"math"
	"sort"
	"strings"

	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// HighConfidenceThreshold is the confidence floor used by HighConfidence.
const HighConfidenceThreshold = 0.3

// Weights controls fusion of image and text scores.
type Weights struct {
	Image              float64
	Text               float64
	ConfidenceBoost    float64
	TextOnlyConfidence float64
}

// DefaultWeights fuses 70% image with 30% text.
var DefaultWeights = Weights{Image: 0.7, Text: 0.3, ConfidenceBoost: 0.2, TextOnlyConfidence: 0.5}

// CombinedWeights weighs text more heavily for found-report combined search.
var CombinedWeights = Weights{Image: 0.6, Text: 0.4}

const (
	nameBonus     = 0.1
	categoryBonus = 0.05
)

// Rank keeps candidates at or above threshold per strategy, fuses those found
// by both strategies and orders the result (see Sort).
func Rank(image, text []dommatch.Candidate, threshold float64, w Weights) []dommatch.Candidate {
	img := accepted(image, threshold)
	txt := accepted(text, threshold)

	textByID := make(map[string]dommatch.Candidate, len(txt))
	for _, c := range txt {
		textByID[c.ID] = c
	}

	out := make([]dommatch.Candidate, 0, len(img)+len(txt))
	seen := make(map[string]struct{}, len(img)+len(txt))
	for _, c := range img {
		if t, ok := textByID[c.ID]; ok {
			fused := w.Image*c.Similarity + w.Text*t.Similarity
			// a weighted mean never drops below the smaller input
			c.Similarity = dommatch.Clamp01(math.Max(fused, math.Min(c.Similarity, t.Similarity)))
			c.TextSimilarity = t.Similarity
			c.Confidence = math.Min(c.Confidence+w.ConfidenceBoost, 1)
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range txt {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		c.TextSimilarity = c.Similarity
		c.Confidence = w.TextOnlyConfidence
		c.MatchPoints = 1
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}

	Sort(out)
	return out
}

// Source is the found report a combined search starts from.
type Source struct {
	Name     string
	Category string
}

// Combined scores image-compared candidates with a text boost:
// w.Image*image + w.Text*text, +0.1 on an exact name match, +0.05 on a category
// match, capped at 1. Only candidates with an image score take part; a missing
// text score counts as 0.
func Combined(image, text []dommatch.Candidate, src Source, threshold float64, w Weights) []dommatch.Candidate {
	textByID := make(map[string]float64, len(text))
	for _, c := range text {
		if _, ok := textByID[c.ID]; !ok {
			textByID[c.ID] = c.Similarity
		}
	}

	out := make([]dommatch.Candidate, 0, len(image))
	seen := make(map[string]struct{}, len(image))
	for _, c := range image {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		ts := textByID[c.ID]
		score := w.Image*c.Similarity + w.Text*ts
		if equalFold(src.Name, c.Name) {
			score = math.Min(1, score+nameBonus)
		}
		if equalFold(src.Category, c.Category) {
			score = math.Min(1, score+categoryBonus)
		}
		score = dommatch.Clamp01(score)
		if score < threshold {
			continue
		}
		c.Similarity = score
		c.TextSimilarity = ts
		out = append(out, c)
	}

	Sort(out)
	return out
}

// HighConfidence keeps candidates whose confidence is at least minConfidence.
func HighConfidence(cands []dommatch.Candidate, minConfidence float64) []dommatch.Candidate {
	out := make([]dommatch.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= minConfidence {
			out = append(out, c)
		}
	}
	return out
}

// Top returns the first n candidates.
func Top(cands []dommatch.Candidate, n int) []dommatch.Candidate {
	if n < 0 {
		n = 0
	}
	if len(cands) <= n {
		return cands
	}
	return cands[:n]
}

// Sort orders by similarity desc, then earliest createdAt, then id.
func Sort(cands []dommatch.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// accepted keeps the first occurrence of each id scoring at least threshold.
func accepted(cands []dommatch.Candidate, threshold float64) []dommatch.Candidate {
	out := make([]dommatch.Candidate, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		if c.Similarity >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}
