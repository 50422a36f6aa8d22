package models

import (
	"time"

	"github.com/google/uuid"
)

// JobView is the read model returned by the status endpoint.
type JobView struct {
	JobID      uuid.UUID   `json:"job_id"`
	Status     JobStatus   `json:"status"`
	Priority   Priority    `json:"priority"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     *ResultView `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ResultView bundles an AnalysisResult with its items.
type ResultView struct {
	AnalysisResult
	Items []ResultItem `json:"items"`
}
