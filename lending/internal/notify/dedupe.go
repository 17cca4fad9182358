package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which notifications were already sent, so that redelivered
// events do not produce a second email.
type Deduper interface {
	// Acquire marks key as sent and reports whether it was unmarked before.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release forgets key after a failed delivery.
	Release(ctx context.Context, key string) error
}

const dedupePrefix = "librakeeper:notify:"

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) Deduper {
	return &redisDeduper{client: client, ttl: ttl}
}

func (d *redisDeduper) Acquire(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, dedupePrefix+key, time.Now().Unix(), d.ttl).Result()
}

func (d *redisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, dedupePrefix+key).Err()
}

type noopDeduper struct{}

// NewNoopDeduper lets every notification through.
func NewNoopDeduper() Deduper { return noopDeduper{} }

func (noopDeduper) Acquire(context.Context, string) (bool, error) { return true, nil }

func (noopDeduper) Release(context.Context, string) error { return nil }
