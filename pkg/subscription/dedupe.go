package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper filters replayed webhook events. Every handler is idempotent on
// its own (all field updates are overwrites), so dedupe is defense in depth
// against provider replay storms, not a correctness requirement.
type Deduper interface {
	// AlreadySeen records the event ID and reports whether it had been
	// recorded before.
	AlreadySeen(ctx context.Context, eventID string) (bool, error)
}

// DefaultDedupeTTL covers the retry horizon of typical billing providers.
const DefaultDedupeTTL = 72 * time.Hour

const dedupeKeyPrefix = "billing:webhook:"

// RedisDeduper implements Deduper with SETNX and a TTL, so the marker
// expires after the provider stops retrying.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper over the given redis client.
// A non-positive ttl falls back to DefaultDedupeTTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) AlreadySeen(ctx context.Context, eventID string) (bool, error) {
	stored, err := d.client.SetNX(ctx, dedupeKeyPrefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrWebhookDedupeUnavailable, err)
	}
	return !stored, nil
}
