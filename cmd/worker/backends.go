package main

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/consentscan/internal/config"
	"github.com/kiranshivaraju/consentscan/internal/queue"
	"github.com/kiranshivaraju/consentscan/internal/store"
)

// backends are the shared stores every worker command operates on.
type backends struct {
	store store.Store
	queue queue.Queue
	close func()
}

func (b *backends) Close() {
	if b.close != nil {
		b.close()
	}
}

type backendOpener func(ctx context.Context, cfg *config.Config) (*backends, error)

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	q, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create queue: %w", err)
	}
	if err := q.Ping(ctx); err != nil {
		q.Close()
		pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &backends{
		store: store.NewPostgresStore(pool),
		queue: q,
		close: func() {
			q.Close()
			pool.Close()
		},
	}, nil
}
