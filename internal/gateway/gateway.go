// Package gateway accepts analysis submissions: it validates them, records a
// queued Job and enqueues a reference for the workers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/internal/queue"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

var (
	// ErrValidation wraps every rejection of malformed input.
	ErrValidation = errors.New("invalid submission")
	// ErrUnavailable wraps store and queue failures. Callers may retry.
	ErrUnavailable = errors.New("submission temporarily unavailable")
)

// MaxSourceBytes bounds the size of a URL or inline document.
const MaxSourceBytes = 1 << 20

// schemePrefixes mark a source as a URL rather than inline content.
var schemePrefixes = []string{"http://", "https://", "file://", "ftp://", "javascript:", "data:"}

// SubmitRequest is the caller's description of one unit of work.
type SubmitRequest struct {
	Source   string         `json:"source"`
	Priority string         `json:"priority,omitempty"`
	Options  models.Options `json:"options"`
}

// SubmitResult is returned as soon as the job is recorded and enqueued.
type SubmitResult struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// Service implements the submission contract.
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

// Submit validates req, writes a queued Job and pushes its reference onto the
// tier matching its priority. The record is written before the push so a
// failed write never leaves a dangling reference.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	job, err := buildJob(req)
	if err != nil {
		return nil, err
	}
	job.ID = uuid.New()
	job.Status = models.JobStatusQueued
	job.CreatedAt = s.now()

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: recording job: %v", ErrUnavailable, err)
	}

	ref := queue.Ref{JobID: job.ID, Priority: job.Priority, EnqueuedAt: job.CreatedAt}
	if err := s.queue.Push(ctx, ref); err != nil {
		// The job stays queued with no reference until a repair run re-pushes it.
		slog.Error("enqueue failed, job left without queue reference",
			"job_id", job.ID, "priority", job.Priority, "error", err)
		return nil, fmt.Errorf("%w: enqueuing job %s: %v", ErrUnavailable, job.ID, err)
	}

	slog.Info("job submitted", "job_id", job.ID, "priority", job.Priority, "source_type", job.SourceType)

	return &SubmitResult{JobID: job.ID, Status: job.Status}, nil
}

// buildJob validates the request and returns an unsaved Job.
func buildJob(req SubmitRequest) (*models.Job, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrValidation)
	}
	if len(source) > MaxSourceBytes {
		return nil, fmt.Errorf("%w: source exceeds %d bytes", ErrValidation, MaxSourceBytes)
	}

	sourceType, err := classifySource(source)
	if err != nil {
		return nil, err
	}

	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	opts, err := req.Options.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return &models.Job{
		Priority:   priority,
		Source:     source,
		SourceType: sourceType,
		Options:    opts,
	}, nil
}

// classifySource decides whether source is a fetchable URL or inline content.
func classifySource(source string) (models.SourceType, error) {
	lower := strings.ToLower(source)
	isURL := false
	for _, p := range schemePrefixes {
		if strings.HasPrefix(lower, p) {
			isURL = true
			break
		}
	}
	if !isURL {
		return models.SourceTypeHTML, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: source is not a valid URL: %v", ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: source URL scheme must be http or https; got %q", ErrValidation, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: source URL has no host", ErrValidation)
	}
	return models.SourceTypeURL, nil
}
