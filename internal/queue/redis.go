package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue with one Redis list per tier.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new RedisQueue from a Redis URL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: redis.NewClient(opts)}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Push(ctx context.Context, ref Ref) error {
	if !ref.Priority.Valid() {
		return fmt.Errorf("push: unknown tier %q", ref.Priority)
	}
	payload, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode ref: %w", err)
	}
	if err := q.client.RPush(ctx, Key(ref.Priority), payload).Err(); err != nil {
		return fmt.Errorf("push %s: %w", ref.Priority, err)
	}
	return nil
}

// Pop relies on BLPOP checking its keys left to right, which yields strict
// priority and an atomic removal across every worker process.
func (q *RedisQueue) Pop(ctx context.Context, tiers []models.Priority, wait time.Duration) (Ref, error) {
	if len(tiers) == 0 {
		return Ref{}, errors.New("pop: no tiers given")
	}
	keys := make([]string, len(tiers))
	for i, t := range tiers {
		keys[i] = Key(t)
	}

	if wait <= 0 {
		for _, key := range keys {
			val, err := q.client.LPop(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return Ref{}, fmt.Errorf("pop: %w", err)
			}
			return decodeRef(val)
		}
		return Ref{}, ErrEmpty
	}

	res, err := q.client.BLPop(ctx, wait, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return Ref{}, ErrEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return Ref{}, ctx.Err()
		}
		return Ref{}, fmt.Errorf("pop: %w", err)
	}
	// res is [key, value].
	return decodeRef([]byte(res[1]))
}

func (q *RedisQueue) Len(ctx context.Context, tier models.Priority) (int64, error) {
	n, err := q.client.LLen(ctx, Key(tier)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length %s: %w", tier, err)
	}
	return n, nil
}

func decodeRef(b []byte) (Ref, error) {
	var ref Ref
	if err := json.Unmarshal(b, &ref); err != nil {
		return Ref{}, fmt.Errorf("decode ref: %w", err)
	}
	return ref, nil
}
