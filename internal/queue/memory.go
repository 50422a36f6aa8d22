package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// MemoryQueue is an in-process Queue with the same ordering guarantees as
// RedisQueue. Used by tests and single-process deployments.
type MemoryQueue struct {
	mu     sync.Mutex
	tiers  map[models.Priority][]Ref
	wake   chan struct{}
	closed bool
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tiers: make(map[models.Priority][]Ref, len(models.Priorities)),
		wake:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	return nil
}

func (q *MemoryQueue) Push(_ context.Context, ref Ref) error {
	if !ref.Priority.Valid() {
		return fmt.Errorf("push: unknown tier %q", ref.Priority)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.tiers[ref.Priority] = append(q.tiers[ref.Priority], ref)

	// Broadcast to every blocked Pop; losers go back to waiting.
	close(q.wake)
	q.wake = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, tiers []models.Priority, wait time.Duration) (Ref, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Ref{}, ErrClosed
		}
		for _, t := range tiers {
			if refs := q.tiers[t]; len(refs) > 0 {
				ref := refs[0]
				q.tiers[t] = refs[1:]
				q.mu.Unlock()
				return ref, nil
			}
		}
		wake := q.wake
		q.mu.Unlock()

		if timeout == nil {
			return Ref{}, ErrEmpty
		}
		select {
		case <-wake:
		case <-timeout:
			return Ref{}, ErrEmpty
		case <-ctx.Done():
			return Ref{}, ctx.Err()
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context, tier models.Priority) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.tiers[tier])), nil
}
