package heuristic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text       string
		category   string
		confidence float64
	}{
		{"Allow analytics", "Analytics", 0.8},
		{"Performance cookies", "Analytics", 0.8},
		{"Personalised ads", "Advertising", 0.8},
		{"Strictly necessary", "Functional", 0.8},
		{"Accept All", "Functional", 0.8},
		{"Share on Twitter", "Social Media", 0.8},
		{"Product recommendations", "Personalization", 0.8},
		{"Read our Privacy Notice", "Privacy", 0.8},
		{"Continue", CategoryOther, 0.5},
		// First keyword in table order wins.
		{"Reject tracking", "Analytics", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			category, confidence := Classify(tt.text)
			assert.Equal(t, tt.category, category)
			assert.InDelta(t, tt.confidence, confidence, 0.001)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a\n\tb   c "))

	long := strings.Repeat("é", maxItemTextBytes)
	got := cleanText(long)
	assert.LessOrEqual(t, len(got), maxItemTextBytes)
	assert.True(t, strings.HasPrefix(long, got))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", truncateString("hello", 10))
	assert.Equal(t, "hel", truncateString("hello", 3))
	// "é" is two bytes; never split it.
	assert.Equal(t, "a", truncateString("aé", 2))
}
