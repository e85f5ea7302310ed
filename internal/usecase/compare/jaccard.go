package compare

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// minTokenLen drops short tokens ("a", "of", "is") from the overlap.
const minTokenLen = 3

// Tokens returns the distinct comparable words of s: case-folded, stripped of
// punctuation, at least minTokenLen runes long.
func Tokens(s string) map[string]struct{} {
	folded := cases.Fold().String(s)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, folded)

	out := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) >= minTokenLen {
			out[w] = struct{}{}
		}
	}
	return out
}

// Jaccard is |A∩B| / |A∪B| over the tokens of a and b. An empty union scores 0.
func Jaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
