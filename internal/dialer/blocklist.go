package dialer

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Blocklist answers whether a caller is barred from the inbound path.
// A nil Blocklist in Deps blocks nobody.
type Blocklist interface {
	Blocked(ctx context.Context, phone string) (bool, error)
}

// blocklistKey is the redis set operators manage from the console.
const blocklistKey = "dialer:blocklist"

// RedisBlocklist reads the shared blocklist set.
type RedisBlocklist struct {
	rdb *redis.Client
}

func NewRedisBlocklist(rdb *redis.Client) *RedisBlocklist { return &RedisBlocklist{rdb: rdb} }

func (b *RedisBlocklist) Blocked(ctx context.Context, phone string) (bool, error) {
	return b.rdb.SIsMember(ctx, blocklistKey, phone).Result()
}
