package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a cheap redis pre-filter in front of the ledger: it lets a
// consumer skip opening a transaction for an event it has already applied.
// Advisory only; the postgres ledger stays the source of truth, so a cache
// miss or redis outage never breaks correctness. Keys are namespaced per
// consumer for the same reason the ledger is: one event has many consumers.
type Cache struct {
	rdb      *redis.Client
	consumer string
	ttl      time.Duration
}

func NewCache(rdb *redis.Client, consumer string, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, consumer: consumer, ttl: ttl}
}

func (c *Cache) key(eventID string) string {
	return "processed:" + c.consumer + ":" + eventID
}

func (c *Cache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark is called only after the ledger transaction committed.
func (c *Cache) Mark(ctx context.Context, eventID string) error {
	return c.rdb.Set(ctx, c.key(eventID), "1", c.ttl).Err()
}
