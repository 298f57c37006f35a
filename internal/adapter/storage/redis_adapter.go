package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyTTL = 24 * time.Hour

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisAdapter)

// WithIdempotencyTTL sets how long a claimed request id blocks repeats.
func WithIdempotencyTTL(d time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{client: client, ttl: idempotencyKeyTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
