package dialer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache keeps recent queue snapshots so console polling does not
// rebuild the queue from storage on every request.
type SnapshotCache interface {
	Get(ctx context.Context, orderID string) (Queue, bool)
	Set(ctx context.Context, orderID string, q Queue)
}

const snapshotKeyPrefix = "dialer:snapshot:"

// RedisSnapshotCache stores JSON queue snapshots with a short TTL, shared by
// every API process.
type RedisSnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSnapshotCache(rdb *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSnapshotCache{rdb: rdb, ttl: ttl}
}

func (c *RedisSnapshotCache) Get(ctx context.Context, orderID string) (Queue, bool) {
	raw, err := c.rdb.Get(ctx, snapshotKeyPrefix+orderID).Bytes()
	if err != nil {
		return Queue{}, false
	}
	var q Queue
	if err := json.Unmarshal(raw, &q); err != nil {
		return Queue{}, false
	}
	return q, true
}

func (c *RedisSnapshotCache) Set(ctx context.Context, orderID string, q Queue) {
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	// Cache writes are best effort; a miss just rebuilds.
	c.rdb.Set(ctx, snapshotKeyPrefix+orderID, raw, c.ttl)
}
