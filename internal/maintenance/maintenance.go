// Package maintenance holds the operator tooling for jobs the pipeline cannot
// recover on its own: running jobs whose worker died and queued jobs whose
// queue reference was lost. Nothing here runs automatically.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/consentscan/internal/queue"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// Stats is a point-in-time summary of the pipeline.
type Stats struct {
	Jobs       map[models.JobStatus]int  `json:"jobs"`
	QueueDepth map[models.Priority]int64 `json:"queue_depth"`
}

// Service runs maintenance operations against the shared stores.
type Service struct {
	store store.Store
	queue queue.Queue
	now   func() time.Time
}

// NewService creates a new Service.
func NewService(st store.Store, q queue.Queue) *Service {
	return &Service{
		store: st,
		queue: q,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FindOrphans lists running jobs that started more than olderThan ago.
func (s *Service) FindOrphans(ctx context.Context, olderThan time.Duration) ([]*models.Job, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		Statuses:      []models.JobStatus{models.JobStatusRunning},
		StartedBefore: s.now().Add(-olderThan),
	})
	if err != nil {
		return nil, fmt.Errorf("listing orphans: %w", err)
	}
	return jobs, nil
}

// FailOrphans marks every orphan failed and returns the ones it changed, as
// they now stand in the store. A job that commits between listing and failing
// keeps its own outcome.
func (s *Service) FailOrphans(ctx context.Context, olderThan time.Duration) ([]*models.Job, error) {
	orphans, err := s.FindOrphans(ctx, olderThan)
	if err != nil {
		return nil, err
	}

	msg := OrphanMessage(olderThan)
	failed := make([]*models.Job, 0, len(orphans))
	for _, job := range orphans {
		finishedAt := s.now()
		err := s.store.FailJob(ctx, job.ID, msg, finishedAt)
		switch {
		case err == nil:
			slog.Warn("orphaned job failed", "job_id", job.ID, "status", models.JobStatusFailed)
			job.Status = models.JobStatusFailed
			job.ErrorMessage = &msg
			job.FinishedAt = &finishedAt
			failed = append(failed, job)
		case isRace(err):
			slog.Info("orphan committed meanwhile, leaving it", "job_id", job.ID)
		default:
			return failed, fmt.Errorf("failing orphan %s: %w", job.ID, err)
		}
	}
	return failed, nil
}

// OrphanMessage is the error recorded on a job failed by FailOrphans.
func OrphanMessage(olderThan time.Duration) string {
	return fmt.Sprintf("orphaned: no terminal state committed within %s", olderThan)
}

// RepairQueued re-pushes a reference for every queued job created more than
// olderThan ago. Jobs that still have a reference end up with two; the
// conditional claim makes the second one a no-op.
func (s *Service) RepairQueued(ctx context.Context, olderThan time.Duration) (int, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		Statuses:      []models.JobStatus{models.JobStatusQueued},
		CreatedBefore: s.now().Add(-olderThan),
	})
	if err != nil {
		return 0, fmt.Errorf("listing queued jobs: %w", err)
	}

	pushed := 0
	for _, job := range jobs {
		ref := queue.Ref{JobID: job.ID, Priority: job.Priority, EnqueuedAt: s.now()}
		if err := s.queue.Push(ctx, ref); err != nil {
			return pushed, fmt.Errorf("re-enqueuing %s: %w", job.ID, err)
		}
		slog.Info("job re-enqueued", "job_id", job.ID, "priority", job.Priority)
		pushed++
	}
	return pushed, nil
}

// Stats returns job counts by status and the depth of every tier.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	depth := make(map[models.Priority]int64, len(models.Priorities))
	for _, tier := range models.Priorities {
		n, err := s.queue.Len(ctx, tier)
		if err != nil {
			return nil, fmt.Errorf("queue depth %s: %w", tier, err)
		}
		depth[tier] = n
	}
	return &Stats{Jobs: counts, QueueDepth: depth}, nil
}

// OldestRunning returns how long the longest-running job has been running.
// ok is false when no job is running.
func (s *Service) OldestRunning(ctx context.Context) (age time.Duration, ok bool, err error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{Statuses: []models.JobStatus{models.JobStatusRunning}})
	if err != nil {
		return 0, false, fmt.Errorf("listing running jobs: %w", err)
	}
	var oldest time.Time
	for _, job := range jobs {
		if job.StartedAt != nil && (oldest.IsZero() || job.StartedAt.Before(oldest)) {
			oldest = *job.StartedAt
		}
	}
	if oldest.IsZero() {
		return 0, false, nil
	}
	return s.now().Sub(oldest), true, nil
}

func isRace(err error) bool {
	return errors.Is(err, store.ErrNotClaimable) || errors.Is(err, store.ErrNotFound)
}
