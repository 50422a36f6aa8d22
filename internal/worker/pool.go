// Package worker runs the claim-execute-commit loops that turn queued jobs
// into finished or failed ones.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/internal/analyzer"
	"github.com/kiranshivaraju/consentscan/internal/config"
	"github.com/kiranshivaraju/consentscan/internal/metrics"
	"github.com/kiranshivaraju/consentscan/internal/queue"
	"github.com/kiranshivaraju/consentscan/internal/store"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

const (
	defaultPollTimeout = 5 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	minBackoff         = 100 * time.Millisecond
	failWriteTimeout   = 30 * time.Second
)

// Lane is a group of identical claim loops servicing the same tiers in strict
// order.
type Lane struct {
	Tiers       []models.Priority
	Concurrency int
}

func (l Lane) String() string {
	names := make([]string, len(l.Tiers))
	for i, t := range l.Tiers {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}

// LanesFromConfig turns the worker settings into lanes: one shared lane over
// cfg.Queues plus one dedicated lane per tier with a non-zero count.
func LanesFromConfig(cfg config.WorkerConfig) []Lane {
	var lanes []Lane
	if cfg.Concurrency > 0 && len(cfg.Queues) > 0 {
		lanes = append(lanes, Lane{Tiers: cfg.Queues, Concurrency: cfg.Concurrency})
	}
	dedicated := map[models.Priority]int{
		models.PriorityHigh:    cfg.ConcurrencyHigh,
		models.PriorityDefault: cfg.ConcurrencyDefault,
		models.PriorityLow:     cfg.ConcurrencyLow,
	}
	for _, tier := range models.Priorities {
		if n := dedicated[tier]; n > 0 {
			lanes = append(lanes, Lane{Tiers: []models.Priority{tier}, Concurrency: n})
		}
	}
	return lanes
}

// Config controls a Pool.
type Config struct {
	// Name is recorded on every job this pool claims.
	Name        string
	Lanes       []Lane
	PollTimeout time.Duration
	MaxBackoff  time.Duration
	// AnalyzerTimeout bounds each Analyze call. Zero means no deadline.
	AnalyzerTimeout time.Duration
	Metrics         *metrics.Metrics
}

// Pool runs the worker loops of one process.
type Pool struct {
	cfg      Config
	store    store.Store
	queue    queue.Queue
	analyzer models.Analyzer
	now      func() time.Time

	// OnCommitted, when set, is called after a job reaches a terminal state
	// committed by this pool.
	OnCommitted func(jobID uuid.UUID, status models.JobStatus)
}

// NewPool validates cfg and creates a Pool.
func NewPool(cfg Config, st store.Store, q queue.Queue, a models.Analyzer) (*Pool, error) {
	if cfg.Name == "" {
		return nil, errors.New("worker name is required")
	}
	total := 0
	for _, lane := range cfg.Lanes {
		if len(lane.Tiers) == 0 {
			return nil, errors.New("every lane needs at least one tier")
		}
		for _, t := range lane.Tiers {
			if !t.Valid() {
				return nil, fmt.Errorf("unknown tier %q", t)
			}
		}
		if lane.Concurrency < 0 {
			return nil, fmt.Errorf("lane %s: concurrency must not be negative", lane)
		}
		total += lane.Concurrency
	}
	if total == 0 {
		return nil, errors.New("worker pool has no claim loops")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	return &Pool{
		cfg:      cfg,
		store:    st,
		queue:    q,
		analyzer: a,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run starts every claim loop and blocks until ctx is cancelled and all loops
// have returned. Jobs already claimed when ctx is cancelled run to completion.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, lane := range p.cfg.Lanes {
		for i := 0; i < lane.Concurrency; i++ {
			loopName := fmt.Sprintf("%s[%s]#%d", p.cfg.Name, lane, i)
			wg.Add(1)
			go func(tiers []models.Priority) {
				defer wg.Done()
				p.loop(ctx, tiers, loopName)
			}(lane.Tiers)
		}
	}

	slog.Info("worker pool started", "worker", p.cfg.Name, "lanes", len(p.cfg.Lanes), "analyzer", p.analyzer.Name())
	wg.Wait()
	slog.Info("worker pool stopped", "worker", p.cfg.Name)
	return nil
}

func (p *Pool) loop(ctx context.Context, tiers []models.Priority, loopName string) {
	backoff := time.Duration(0)
	for ctx.Err() == nil {
		ref, err := p.queue.Pop(ctx, tiers, p.cfg.PollTimeout)
		switch {
		case err == nil:
			backoff = 0
			// Claimed work is finished even if shutdown starts meanwhile.
			p.handle(context.WithoutCancel(ctx), ref, loopName)
		case errors.Is(err, queue.ErrEmpty):
		case ctx.Err() != nil, errors.Is(err, queue.ErrClosed):
			return
		default:
			backoff = nextBackoff(backoff, p.cfg.MaxBackoff)
			slog.Warn("queue pop failed, backing off",
				"worker", loopName, "error", err, "backoff_ms", backoff.Milliseconds())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ProcessNext pops and handles at most one reference from tiers without
// blocking. It reports whether a reference was consumed.
func (p *Pool) ProcessNext(ctx context.Context, tiers []models.Priority) (bool, error) {
	ref, err := p.queue.Pop(ctx, tiers, 0)
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.handle(context.WithoutCancel(ctx), ref, p.cfg.Name)
	return true, nil
}

// handle runs one claim-execute-commit cycle for ref.
func (p *Pool) handle(ctx context.Context, ref queue.Ref, loopName string) {
	log := slog.With("job_id", ref.JobID, "priority", ref.Priority, "worker", loopName)

	started := p.now()
	job, err := p.store.ClaimJob(ctx, ref.JobID, p.cfg.Name, started)
	if err != nil {
		if errors.Is(err, store.ErrNotClaimable) || errors.Is(err, store.ErrNotFound) {
			// Duplicate or pruned reference; some other claim owns the job.
			log.Debug("skipping unclaimable reference", "error", err)
			return
		}
		log.Error("claim failed", "error", err)
		p.requeue(ctx, ref, log)
		return
	}
	defer p.cfg.Metrics.Claimed()()

	analysis, err := p.analyze(ctx, job)
	if err != nil {
		log.Warn("analysis failed", "error", err, "duration_ms", p.now().Sub(started).Milliseconds())
		p.fail(ctx, job, err, log)
		return
	}

	result, items := buildResult(job, analysis, p.analyzer.Name(), p.now().Sub(started))
	if err := p.store.CompleteJob(ctx, job.ID, result, items, p.now()); err != nil {
		log.Error("commit failed", "error", err)
		p.fail(ctx, job, fmt.Errorf("committing result: %w", err), log)
		return
	}

	log.Info("job finished",
		"status", models.JobStatusFinished, "items", len(items), "duration_ms", p.now().Sub(started).Milliseconds())
	p.cfg.Metrics.Classified(result.Metadata.Categories, len(items))
	p.committed(job, models.JobStatusFinished)
}

// analyze calls the Analyzer, converting panics and deadline expiry to errors.
func (p *Pool) analyze(ctx context.Context, job *models.Job) (analysis *models.Analysis, err error) {
	if p.cfg.AnalyzerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AnalyzerTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analyzer", "error", r, "job_id", job.ID, "stack", string(debug.Stack()))
			analysis = nil
			err = fmt.Errorf("%w: %v", analyzer.ErrPanic, r)
		}
		p.cfg.Metrics.ObserveAnalyzer(p.analyzer.Name(), time.Since(start), err)
	}()

	analysis, err = p.analyzer.Analyze(ctx, job.AnalysisSource(), job.Options)
	if err != nil {
		if p.cfg.AnalyzerTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, analyzer.ErrTimeout) {
			err = fmt.Errorf("%w after %s: %v", analyzer.ErrTimeout, p.cfg.AnalyzerTimeout, err)
		}
		return nil, err
	}
	if analysis == nil {
		return nil, errors.New("analyzer returned no result")
	}
	return analysis, nil
}

// fail records cause on the job. A failure here leaves the job running with no
// owner; the orphan tooling picks it up.
func (p *Pool) fail(ctx context.Context, job *models.Job, cause error, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	if err := p.store.FailJob(ctx, job.ID, ErrorMessage(cause), p.now()); err != nil {
		log.Error("could not record job failure, job is orphaned", "error", err, "cause", cause)
		return
	}
	log.Info("job failed", "status", models.JobStatusFailed, "error", cause)
	p.committed(job, models.JobStatusFailed)
}

// requeue puts ref back after an infrastructure failure at claim time. A
// duplicate reference is harmless because claims are conditional.
func (p *Pool) requeue(ctx context.Context, ref queue.Ref, log *slog.Logger) {
	if err := p.queue.Push(ctx, ref); err != nil {
		log.Error("requeue failed, job left queued without reference", "error", err)
	}
}

func (p *Pool) committed(job *models.Job, status models.JobStatus) {
	p.cfg.Metrics.JobCommitted(status, job.Priority)
	if p.OnCommitted != nil {
		p.OnCommitted(job.ID, status)
	}
}

func nextBackoff(cur, ceiling time.Duration) time.Duration {
	if cur < minBackoff {
		return minBackoff
	}
	cur *= 2
	if cur > ceiling {
		return ceiling
	}
	return cur
}
