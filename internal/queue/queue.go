// Package queue holds references to queued jobs, one FIFO per priority tier.
//
// Pop always services tiers in the order given, so a lower tier is only served
// while every higher tier in the list is empty. Sustained high-priority load
// starves lower tiers; that is accepted.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

var (
	// ErrEmpty is returned by Pop when no reference arrived before the wait expired.
	ErrEmpty  = errors.New("queue empty")
	ErrClosed = errors.New("queue closed")
)

// Ref points a worker at a Job. It carries no payload; the Record Store is the
// source of truth.
type Ref struct {
	JobID      uuid.UUID       `json:"job_id"`
	Priority   models.Priority `json:"priority"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is the Queue Store interface. Implementations must be safe for
// concurrent use and must hand each pushed Ref to at most one Pop.
type Queue interface {
	Push(ctx context.Context, ref Ref) error
	// Pop removes the oldest Ref of the first non-empty tier in tiers, blocking up
	// to wait. A non-positive wait does not block.
	Pop(ctx context.Context, tiers []models.Priority, wait time.Duration) (Ref, error)
	Len(ctx context.Context, tier models.Priority) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
