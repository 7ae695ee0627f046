package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "repeated pipeline warnings collapse to one",
			input:    []string{"image resolution below minimum", "glare detected", "image resolution below minimum"},
			expected: []string{"image resolution below minimum", "glare detected"},
		},
		{
			name:     "trims whitespace from config list entries",
			input:    []string{"  https://a.example  ", "https://b.example  "},
			expected: []string{"https://a.example", "https://b.example"},
		},
		{
			name:     "drops empty and blank entries",
			input:    []string{"foo", "", "  ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "combined trim, dedupe, and blank removal",
			input:    []string{"  foo ", "bar", "foo", "", "  ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "preserves case and first-seen order",
			input:    []string{"Foo", "foo", "FOO"},
			expected: []string{"Foo", "foo", "FOO"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
