package models

import "context"

// Analyzer extracts and classifies the consent elements of one source.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, src AnalysisSource, opts Options) (*Analysis, error)
}

// AnalysisSource is what a worker hands to the Analyzer.
type AnalysisSource struct {
	Type    SourceType
	Content string
}

// Analysis is the raw Analyzer output before it is persisted.
type Analysis struct {
	Language string         `json:"language"`
	Items    []AnalysisItem `json:"items"`
}

type AnalysisItem struct {
	Text        string  `json:"text"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	ElementKind string  `json:"element_kind"`
	Interactive bool    `json:"interactive"`
}
