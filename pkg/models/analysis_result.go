package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ResultStatusCompleted = "completed"
	ResultStatusFailed    = "failed"
)

// AnalysisResult is the immutable record of one completed analysis session.
// It outlives the Job that produced it.
type AnalysisResult struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	JobID     uuid.UUID `db:"job_id"     json:"job_id"`
	SourceID  string    `db:"source_id"  json:"source_id"`
	Language  string    `db:"language"   json:"language"`
	ItemCount int       `db:"item_count" json:"item_count"`
	Metadata  Metadata  `db:"metadata"   json:"metadata"`
	Status    string    `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Metadata is the free-form summary stored alongside an AnalysisResult.
type Metadata struct {
	SourceType       SourceType     `json:"source_type"`
	Categories       map[string]int `json:"categories"`
	Analyzer         string         `json:"analyzer,omitempty"`
	OutputFormat     string         `json:"output_format,omitempty"`
	ProcessingMillis int64          `json:"processing_ms"`
}

// ResultItem is one classified element belonging to an AnalysisResult.
type ResultItem struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	ResultID    uuid.UUID `db:"result_id"    json:"result_id"`
	Position    int       `db:"position"     json:"position"`
	Text        string    `db:"text"         json:"text"`
	Category    string    `db:"category"     json:"category"`
	Confidence  float64   `db:"confidence"   json:"confidence"`
	ElementKind string    `db:"element_kind" json:"element_kind"`
	Interactive bool      `db:"interactive"  json:"interactive"`
}
