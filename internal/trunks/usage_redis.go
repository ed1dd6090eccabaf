package trunks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dialer-core/pkg/utils"
)

// Usage tracks live and daily channel occupancy per trunk.
type Usage interface {
	// Acquire takes one channel; false means the trunk is full.
	Acquire(ctx context.Context, trunkID string, limit int) (bool, error)
	Release(ctx context.Context, trunkID string) error

	// Active is the current live channel count.
	Active(ctx context.Context, trunkID string) (int, error)

	// DailyTotal is how many calls the trunk carried today.
	DailyTotal(ctx context.Context, trunkID string) (int, error)

	// LastUsed remembers the previously selected trunk for the
	// no-repetition scheme.
	LastUsed(ctx context.Context) (string, error)
	SetLastUsed(ctx context.Context, trunkID string) error
}

const (
	channelKeyPrefix = "trunk:chan:"
	dailyKeyPrefix   = "trunk:daily:"
	lastUsedKey      = "trunk:last_used"

	// channelTTL guards against leaked channel slots when a worker dies
	// without releasing. Longer than any realistic call.
	channelTTL = 4 * time.Hour
)

// RedisUsage keeps occupancy in redis so every worker process sees the same
// channel counts.
type RedisUsage struct {
	rdb *redis.Client
}

func NewRedisUsage(rdb *redis.Client) *RedisUsage { return &RedisUsage{rdb: rdb} }

func (u *RedisUsage) Acquire(ctx context.Context, trunkID string, limit int) (bool, error) {
	if trunkID == "" {
		return false, ErrInvalidArgument
	}
	ok, err := utils.AcquireConcurrencyCap(ctx, u.rdb, channelKeyPrefix+trunkID, limit, channelTTL)
	if err != nil || !ok {
		return ok, err
	}
	if _, err := utils.IncrDailyCounter(ctx, u.rdb, dailyKey(trunkID, time.Now()), time.Now()); err != nil {
		// Daily accounting is best-effort; the channel slot is what matters.
		return true, nil
	}
	return true, nil
}

func (u *RedisUsage) Release(ctx context.Context, trunkID string) error {
	if trunkID == "" {
		return ErrInvalidArgument
	}
	return utils.ReleaseConcurrencyCap(ctx, u.rdb, channelKeyPrefix+trunkID)
}

func (u *RedisUsage) Active(ctx context.Context, trunkID string) (int, error) {
	if trunkID == "" {
		return 0, ErrInvalidArgument
	}
	return utils.CurrentCap(ctx, u.rdb, channelKeyPrefix+trunkID)
}

func (u *RedisUsage) DailyTotal(ctx context.Context, trunkID string) (int, error) {
	if trunkID == "" {
		return 0, ErrInvalidArgument
	}
	n, err := u.rdb.Get(ctx, dailyKey(trunkID, time.Now())).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (u *RedisUsage) LastUsed(ctx context.Context) (string, error) {
	v, err := u.rdb.Get(ctx, lastUsedKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (u *RedisUsage) SetLastUsed(ctx context.Context, trunkID string) error {
	return u.rdb.Set(ctx, lastUsedKey, trunkID, 24*time.Hour).Err()
}

func dailyKey(trunkID string, now time.Time) string {
	return dailyKeyPrefix + trunkID + ":" + now.Format("2006-01-02")
}
