// Package validate reconciles a recommended build against the catalog:
// fuzzy-matching names, correcting prices and recomputing the total.
package validate

import (
	"regexp"
	"strings"

	"github.com/buildkeeb/engine/internal/catalog"
)

// Similarity scores for the non-Jaccard cases.
const (
	exactScore       = 1.0
	containmentScore = 0.85
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases s, strips everything outside [a-z0-9\s], collapses
// whitespace and trims.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity returns 1.0 for equal normalized strings, 0.85 when one contains
// the other, and token-set Jaccard similarity otherwise. Empty input scores 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return exactScore
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}
	return jaccard(strings.Fields(na), strings.Fields(nb))
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// BestMatch returns the highest-scoring candidate for name. The first
// candidate wins ties. ok is false when candidates is empty.
func BestMatch(name string, candidates []catalog.Candidate) (best catalog.Candidate, score float64, ok bool) {
	for _, c := range candidates {
		s := Similarity(name, c.Name)
		if !ok || s > score {
			best, score, ok = c, s, true
		}
	}
	return best, score, ok
}
