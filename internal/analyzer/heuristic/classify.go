package heuristic

import "strings"

const (
	CategoryOther = "Other"

	keywordConfidence = 0.8
	defaultConfidence = 0.5
)

// keywordCategories is checked in order; the first keyword contained in the
// text decides the category.
var keywordCategories = []struct {
	keyword  string
	category string
}{
	{"analytics", "Analytics"},
	{"tracking", "Analytics"},
	{"performance", "Analytics"},
	{"ads", "Advertising"},
	{"advertising", "Advertising"},
	{"marketing", "Advertising"},
	{"functional", "Functional"},
	{"necessary", "Functional"},
	{"cookies", "Functional"},
	{"essential", "Functional"},
	{"accept", "Functional"},
	{"reject", "Functional"},
	{"social", "Social Media"},
	{"facebook", "Social Media"},
	{"twitter", "Social Media"},
	{"personalization", "Personalization"},
	{"recommendations", "Personalization"},
	{"privacy", "Privacy"},
	{"policy", "Privacy"},
}

// Classify assigns a category and confidence to a consent element's text.
func Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, kc := range keywordCategories {
		if strings.Contains(lower, kc.keyword) {
			return kc.category, keywordConfidence
		}
	}
	return CategoryOther, defaultConfidence
}
