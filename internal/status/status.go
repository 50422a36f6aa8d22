// Package status answers job status queries from the record store.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/internal/cache"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrInvalidID = errors.New("invalid job id")
)

// Service is read-only: it never changes a job or its result.
type Service struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewService creates a new Service. A nil cache or a non-positive ttl disables
// caching of terminal views.
func NewService(st store.Store, c cache.Cache, ttl time.Duration) *Service {
	return &Service{store: st, cache: c, ttl: ttl}
}

// Get returns the current view of the job identified by rawID.
func (s *Service) Get(ctx context.Context, rawID string) (*models.JobView, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, rawID)
	}

	if view, ok := s.cached(ctx, id); ok {
		return view, nil
	}

	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}

	view, err := s.build(ctx, job)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		s.remember(ctx, view)
	}
	return view, nil
}

func (s *Service) build(ctx context.Context, job *models.Job) (*models.JobView, error) {
	view := &models.JobView{
		JobID:      job.ID,
		Status:     job.Status,
		Priority:   job.Priority,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}

	switch job.Status {
	case models.JobStatusFinished:
		if job.ResultID == nil {
			return nil, fmt.Errorf("job %s is finished without a result", job.ID)
		}
		result, err := s.store.GetAnalysisResult(ctx, *job.ResultID)
		if err != nil {
			return nil, fmt.Errorf("loading result: %w", err)
		}
		items, err := s.store.ListResultItems(ctx, result.ID)
		if err != nil {
			return nil, fmt.Errorf("loading result items: %w", err)
		}
		view.Result = &models.ResultView{AnalysisResult: *result, Items: items}
	case models.JobStatusFailed:
		view.Error = "unknown error"
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			view.Error = *job.ErrorMessage
		}
	}
	return view, nil
}

func (s *Service) cached(ctx context.Context, id uuid.UUID) (*models.JobView, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, found, err := s.cache.GetJobView(ctx, id)
	if err != nil {
		slog.Debug("status cache read failed", "job_id", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var view models.JobView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, false
	}
	return &view, true
}

func (s *Service) remember(ctx context.Context, view *models.JobView) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.SetJobView(ctx, view.JobID, raw, s.ttl); err != nil {
		slog.Debug("status cache write failed", "job_id", view.JobID, "error", err)
	}
}
