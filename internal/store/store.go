package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	// ErrNotClaimable is returned when a conditional status update finds the job
	// in a state other than the expected one.
	ErrNotClaimable = errors.New("job not in expected state")
	// ErrInvalidJob is returned by CreateJob for an unknown status or priority.
	ErrInvalidJob = errors.New("invalid job")
)

// CheckNewJob applies the creation defaults to job and rejects a status or
// priority outside the known sets.
func CheckNewJob(job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if !job.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidJob, job.Status)
	}
	if !job.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidJob, job.Priority)
	}
	return nil
}

// TransitionError explains why a conditional move of job id to status to
// matched nothing, given the status the job is actually in.
func TransitionError(id uuid.UUID, current, to models.JobStatus) error {
	if !current.Valid() {
		return fmt.Errorf("%w: job %s has unknown status %q", ErrNotClaimable, id, current)
	}
	return fmt.Errorf("%w: job %s cannot move from %s to %s", ErrNotClaimable, id, current, to)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ClaimJob moves a queued job to running. It is the single authority on which
	// worker owns a job.
	ClaimJob(ctx context.Context, id uuid.UUID, worker string, startedAt time.Time) (*models.Job, error)
	// CompleteJob inserts the result, its items and marks the job finished in one
	// transaction.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.AnalysisResult, items []models.ResultItem, finishedAt time.Time) error
	FailJob(ctx context.Context, jobID uuid.UUID, message string, finishedAt time.Time) error
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	GetAnalysisResult(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error)
	GetAnalysisResultByJobID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisResult, error)
	ListResultItems(ctx context.Context, resultID uuid.UUID) ([]models.ResultItem, error)
}

// JobFilter narrows ListJobs. Zero fields are ignored.
type JobFilter struct {
	Statuses      []models.JobStatus
	CreatedBefore time.Time
	StartedBefore time.Time
	Limit         int
}
