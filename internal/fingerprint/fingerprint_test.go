package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "What Is Osmosis", "what is osmosis"},
		{"strips punctuation", "What is Osmosis?!", "what is osmosis"},
		{"collapses whitespace", "what  is \t osmosis", "what is osmosis"},
		{"trims edges", "  what is osmosis  ", "what is osmosis"},
		{"keeps apostrophes", "what's osmosis", "what's osmosis"},
		{"empty", "", ""},
		{"only punctuation", "?!.,;:", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	// Case, punctuation, and whitespace variations must collide on purpose.
	base := Compute("What is Osmosis?")
	assert.Equal(t, base, Compute("what is   osmosis"))
	assert.Equal(t, base, Compute("WHAT IS OSMOSIS!!"))
	assert.Equal(t, base, Compute("  what\tis\nosmosis  "))
}

func TestCompute_DistinctQueries(t *testing.T) {
	assert.NotEqual(t, Compute("what is osmosis"), Compute("what is diffusion"))
}

func TestCompute_Length(t *testing.T) {
	assert.Len(t, Compute("explain photosynthesis"), DigestLength)
}
