// Package models contains shared data models used across the consentscan codebase.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

var validTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusRunning},
	JobStatusRunning: {JobStatusFinished, JobStatusFailed},
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusFinished, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// CanTransition reports whether s -> to is a legal lifecycle step.
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Priority is the queue tier a Job is enqueued on.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

// Priorities lists every tier in strict claim order.
var Priorities = []Priority{PriorityHigh, PriorityDefault, PriorityLow}

// Valid reports whether p is a known tier.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityDefault, PriorityLow:
		return true
	}
	return false
}

// ParsePriority maps user input to a tier. Empty input selects the default tier.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityDefault, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("priority must be one of high, default, low; got %q", s)
	}
	return p, nil
}

// ParsePriorities parses a comma-separated tier list, keeping strict claim order
// and dropping duplicates.
func ParsePriorities(s string) ([]Priority, error) {
	seen := make(map[Priority]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePriority(part)
		if err != nil {
			return nil, err
		}
		seen[p] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("at least one queue tier is required")
	}
	out := make([]Priority, 0, len(seen))
	for _, p := range Priorities {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// SourceType distinguishes fetched documents from inline content.
type SourceType string

const (
	SourceTypeURL  SourceType = "url"
	SourceTypeHTML SourceType = "html"
)

// Job tracks one submitted analysis. The API returns its id on POST /api/v1/jobs;
// the client polls GET /api/v1/jobs/{jobID} until status is finished or failed.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Priority     Priority   `db:"priority"      json:"priority"`
	Status       JobStatus  `db:"status"        json:"status"`
	Source       string     `db:"source"        json:"source"`
	SourceType   SourceType `db:"source_type"   json:"source_type"`
	Options      Options    `db:"options"       json:"options"`
	ResultID     *uuid.UUID `db:"result_id"     json:"result_id,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	Worker       *string    `db:"worker"        json:"worker,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at"   json:"finished_at,omitempty"`
}

// AnalysisSource returns the input handed to the Analyzer for this job.
func (j *Job) AnalysisSource() AnalysisSource {
	return AnalysisSource{Type: j.SourceType, Content: j.Source}
}

// SourceID identifies the analysed source on the result record. URLs are kept
// as-is; inline content is referenced by a digest prefix.
func (j *Job) SourceID() string {
	if j.SourceType == SourceTypeURL {
		return j.Source
	}
	sum := sha256.Sum256([]byte(j.Source))
	return "inline:" + hex.EncodeToString(sum[:8])
}
