package event

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator remembers delivered event ids so redeliveries are dropped.
type Deduplicator interface {
	Processed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
}

const (
	dedupPrefix = "paysync:event:"
	DedupTTL    = 72 * time.Hour
)

type redisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) Deduplicator {
	if ttl <= 0 {
		ttl = DedupTTL
	}
	return &redisDeduplicator{client: client, ttl: ttl}
}

func (d *redisDeduplicator) Processed(ctx context.Context, id string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisDeduplicator) MarkProcessed(ctx context.Context, id string) error {
	return d.client.SetNX(ctx, dedupPrefix+id, time.Now().Unix(), d.ttl).Err()
}
