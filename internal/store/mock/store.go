// Package mock provides an in-memory store.Store with the same conditional
// transition semantics as PostgresStore.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// MockStore satisfies store.Store for testing. The *Err fields inject failures.
type MockStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	results map[uuid.UUID]*models.AnalysisResult
	items   map[uuid.UUID][]models.ResultItem

	PingErr        error
	CreateJobErr   error
	GetJobErr      error
	ClaimJobErr    error
	CompleteJobErr error
	FailJobErr     error
	DeleteErr      error
}

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		jobs:    make(map[uuid.UUID]*models.Job),
		results: make(map[uuid.UUID]*models.AnalysisResult),
		items:   make(map[uuid.UUID][]models.ResultItem),
	}
}

func (s *MockStore) Ping(_ context.Context) error { return s.PingErr }

func (s *MockStore) CreateJob(_ context.Context, job *models.Job) error {
	if s.CreateJobErr != nil {
		return s.CreateJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := store.CheckNewJob(job); err != nil {
		return err
	}
	if _, exists := s.jobs[job.ID]; exists {
		return store.ErrDuplicateKey
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MockStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if s.GetJobErr != nil {
		return nil, s.GetJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyJob(job), nil
}

func (s *MockStore) ClaimJob(_ context.Context, id uuid.UUID, worker string, startedAt time.Time) (*models.Job, error) {
	if s.ClaimJobErr != nil {
		return nil, s.ClaimJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.transition(id, models.JobStatusRunning)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatusRunning
	job.StartedAt = &startedAt
	job.Worker = &worker
	return copyJob(job), nil
}

func (s *MockStore) CompleteJob(_ context.Context, jobID uuid.UUID, result *models.AnalysisResult, items []models.ResultItem, finishedAt time.Time) error {
	if s.CompleteJobErr != nil {
		return s.CompleteJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.transition(jobID, models.JobStatusFinished)
	if err != nil {
		return err
	}
	for _, r := range s.results {
		if r.JobID == jobID {
			return store.ErrDuplicateKey
		}
	}
	for _, it := range items {
		if it.Confidence < 0 || it.Confidence > 1 {
			return fmt.Errorf("insert result items: confidence %v out of range", it.Confidence)
		}
	}

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.Status == "" {
		result.Status = models.ResultStatusCompleted
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = finishedAt
	}
	result.JobID = jobID
	result.ItemCount = len(items)

	stored := make([]models.ResultItem, len(items))
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.ResultID = result.ID
		stored[i] = it
	}
	r := *result
	s.results[result.ID] = &r
	s.items[result.ID] = stored

	resultID := result.ID
	job.Status = models.JobStatusFinished
	job.ResultID = &resultID
	job.FinishedAt = &finishedAt
	return nil
}

func (s *MockStore) FailJob(_ context.Context, jobID uuid.UUID, message string, finishedAt time.Time) error {
	if s.FailJobErr != nil {
		return s.FailJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.transition(jobID, models.JobStatusFailed)
	if err != nil {
		return err
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &finishedAt
	return nil
}

func (s *MockStore) DeleteTerminalJobsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *MockStore) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, job.Status) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !job.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		if !filter.StartedBefore.IsZero() && (job.StartedAt == nil || !job.StartedAt.Before(filter.StartedBefore)) {
			continue
		}
		out = append(out, copyJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MockStore) CountJobsByStatus(_ context.Context) (map[models.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.JobStatus]int, 4)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (s *MockStore) GetAnalysisResult(_ context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MockStore) GetAnalysisResultByJobID(_ context.Context, jobID uuid.UUID) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.JobID == jobID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MockStore) ListResultItems(_ context.Context, resultID uuid.UUID) ([]models.ResultItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.ResultItem, len(s.items[resultID]))
	copy(items, s.items[resultID])
	return items, nil
}

// Results returns every stored AnalysisResult.
func (s *MockStore) Results() []*models.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AnalysisResult, 0, len(s.results))
	for _, r := range s.results {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// Jobs returns a snapshot of every stored Job.
func (s *MockStore) Jobs() []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, copyJob(job))
	}
	return out
}

// transition returns the live job if it may move to status to. Caller holds
// s.mu.
func (s *MockStore) transition(id uuid.UUID, to models.JobStatus) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !job.Status.CanTransition(to) {
		return nil, store.TransitionError(id, job.Status, to)
	}
	return job, nil
}

func hasStatus(statuses []models.JobStatus, st models.JobStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func copyJob(j *models.Job) *models.Job {
	cp := *j
	return &cp
}

// Compile-time check that MockStore implements Store.
var _ store.Store = (*MockStore)(nil)
