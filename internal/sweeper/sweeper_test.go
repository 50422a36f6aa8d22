package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/consentscan/internal/store/mock"
	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed creates a job that reaches status at finishedAt, or stays queued.
func seed(t *testing.T, st *mock.MockStore, status models.JobStatus, finishedAt time.Time) *models.Job {
	t.Helper()
	ctx := context.Background()
	job := &models.Job{Priority: models.PriorityDefault, Source: "https://example.com", SourceType: models.SourceTypeURL}
	require.NoError(t, st.CreateJob(ctx, job))
	if status == models.JobStatusQueued {
		return job
	}
	_, err := st.ClaimJob(ctx, job.ID, "w1", finishedAt)
	require.NoError(t, err)
	switch status {
	case models.JobStatusFinished:
		require.NoError(t, st.CompleteJob(ctx, job.ID, &models.AnalysisResult{SourceID: job.Source, Language: "en"}, nil, finishedAt))
	case models.JobStatusFailed:
		require.NoError(t, st.FailJob(ctx, job.ID, "boom", finishedAt))
	}
	return job
}

func TestNew_Validation(t *testing.T) {
	st := mock.NewMockStore()

	_, err := New(st, 0, "@daily")
	assert.Error(t, err)

	_, err = New(st, time.Hour, "whenever")
	assert.Error(t, err)

	s, err := New(st, time.Hour, "*/5 * * * *")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSweep_DeletesOnlyOldTerminalJobs(t *testing.T) {
	st := mock.NewMockStore()
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)

	oldFinished := seed(t, st, models.JobStatusFinished, old)
	oldFailed := seed(t, st, models.JobStatusFailed, old)
	recent := seed(t, st, models.JobStatusFinished, now)
	running := seed(t, st, models.JobStatusRunning, old)
	queued := seed(t, st, models.JobStatusQueued, old)

	s, err := New(st, 24*time.Hour, "@daily")
	require.NoError(t, err)

	n, err := s.Sweep(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ctx := context.Background()
	for _, gone := range []*models.Job{oldFinished, oldFailed} {
		_, err := st.GetJob(ctx, gone.ID)
		assert.Error(t, err)
	}
	for _, kept := range []*models.Job{recent, running, queued} {
		_, err := st.GetJob(ctx, kept.ID)
		assert.NoError(t, err)
	}

	// Results outlive their jobs.
	_, err = st.GetAnalysisResultByJobID(ctx, oldFinished.ID)
	assert.NoError(t, err)
}

func TestSweep_Idempotent(t *testing.T) {
	st := mock.NewMockStore()
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	seed(t, st, models.JobStatusFinished, old)
	seed(t, st, models.JobStatusFailed, old)

	s, err := New(st, 7*24*time.Hour, "@daily")
	require.NoError(t, err)
	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)

	first, err := s.Sweep(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)

	second, err := s.Sweep(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestSweepOnce_UsesRetentionWindow(t *testing.T) {
	st := mock.NewMockStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seed(t, st, models.JobStatusFinished, now.Add(-8*24*time.Hour))
	keep := seed(t, st, models.JobStatusFinished, now.Add(-6*24*time.Hour))

	s, err := New(st, 7*24*time.Hour, "@daily")
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = st.GetJob(context.Background(), keep.ID)
	assert.NoError(t, err)
}

func TestSweep_StoreError(t *testing.T) {
	st := mock.NewMockStore()
	st.DeleteErr = errors.New("connection refused")
	s, err := New(st, time.Hour, "@daily")
	require.NoError(t, err)

	_, err = s.SweepOnce(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New(mock.NewMockStore(), time.Hour, "@every 1h")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
