package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNames(t *testing.T) {
	engine := New(nil, nil)

	tests := []struct {
		name      string
		declared  string
		extracted string
		match     bool
		score     float64
	}{
		{name: "exact", declared: "Jane Doe", extracted: "Jane Doe", match: true, score: 1.0},
		{name: "different order", declared: "Jane Doe", extracted: "Doe Jane", match: true, score: 0.95},
		{name: "case and punctuation folded", declared: "JANE   DOE", extracted: "jane doe", match: true, score: 1.0},
		{name: "one typo per token", declared: "Jane Doe", extracted: "Jane Do", match: true, score: 0.85},
		{name: "middle name on the document", declared: "Jane Doe", extracted: "Jane Marie Doe", match: true, score: 0.85},
		{name: "entirely different", declared: "Jane Doe", extracted: "John Smith", match: false},
		{name: "hyphenated surname splits", declared: "Jane Doe-Smith", extracted: "Jane Doe Smith", match: true, score: 1.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			match, score := engine.CompareNames(tc.declared, tc.extracted)
			assert.Equal(t, tc.match, match)
			if tc.score > 0 {
				assert.InDelta(t, tc.score, score, 0.001)
			}
		})
	}

	t.Run("empty names never match", func(t *testing.T) {
		match, score := engine.CompareNames("", "Jane Doe")
		assert.False(t, match)
		assert.Zero(t, score)

		match, score = engine.CompareNames("Jane Doe", "")
		assert.False(t, match)
		assert.Zero(t, score)
	})
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 1, levenshtein("abc", "ab"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
