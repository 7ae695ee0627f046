package decision

import (
	"strings"
	"unicode"
)

// Name-comparison scores, from strongest to weakest form of agreement.
const (
	nameScoreExact   = 1.0
	nameScoreReorder = 0.95
	nameScoreFuzzy   = 0.85
)

// CompareNames fuzzily compares a requester-declared name against the name
// extracted from the document. Exact match scores 1.0; the same parts in a
// different order 0.95; all parts present either direction with at most one
// edit per token 0.85; otherwise normalized Levenshtein similarity, matching
// at the configured threshold.
func (e *Engine) CompareNames(declared, extracted string) (bool, float64) {
	a := normalizeName(declared)
	b := normalizeName(extracted)
	if a == "" || b == "" {
		return false, 0
	}
	if a == b {
		return true, nameScoreExact
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if tokensCovered(tokensA, tokensB, 0) && tokensCovered(tokensB, tokensA, 0) {
		return true, nameScoreReorder
	}
	if tokensCovered(tokensA, tokensB, 1) || tokensCovered(tokensB, tokensA, 1) {
		return true, nameScoreFuzzy
	}

	distance := levenshtein(a, b)
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	score := 1 - float64(distance)/float64(longer)
	if score < 0 {
		score = 0
	}
	return score >= e.config.NameMatchThreshold, score
}

// normalizeName lowercases, strips everything but letters and spaces, and
// collapses whitespace.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '\'':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokensCovered reports whether every token in from has a counterpart in to
// within maxEdits Levenshtein distance. Each counterpart is consumed once.
func tokensCovered(from, to []string, maxEdits int) bool {
	used := make([]bool, len(to))
	for _, token := range from {
		found := false
		for i, candidate := range to {
			if used[i] {
				continue
			}
			if levenshtein(token, candidate) <= maxEdits {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
