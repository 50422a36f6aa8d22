// Package sweeper prunes terminal jobs older than the retention window.
// Analysis results and their items are never touched.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/robfig/cron/v3"
)

// Sweeper deletes finished and failed jobs whose finished_at precedes a cutoff.
type Sweeper struct {
	store    store.Store
	window   time.Duration
	schedule string
	now      func() time.Time
}

// New creates a Sweeper. schedule is a standard five-field cron spec or a
// descriptor such as @daily.
func New(st store.Store, window time.Duration, schedule string) (*Sweeper, error) {
	if window <= 0 {
		return nil, fmt.Errorf("retention window must be positive; got %s", window)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		store:    st,
		window:   window,
		schedule: schedule,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sweep deletes terminal jobs that finished before cutoff and reports how
// many were removed. Repeating a sweep with the same cutoff removes nothing.
func (s *Sweeper) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

// SweepOnce sweeps with cutoff now minus the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	start := s.now()
	cutoff := start.Add(-s.window)
	n, err := s.Sweep(ctx, cutoff)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return 0, err
	}
	slog.Info("sweep complete",
		"deleted", n,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", s.now().Sub(start).Milliseconds())
	return n, nil
}

// Run sweeps on the configured schedule until ctx is cancelled. A run still in
// progress when the next one is due causes that next run to be skipped.
func (s *Sweeper) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.schedule, func() { _, _ = s.SweepOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}

	slog.Info("sweeper started", "schedule", s.schedule, "retention", s.window.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("sweeper stopped")
	return nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
