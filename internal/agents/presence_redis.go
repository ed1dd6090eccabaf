package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence answers who is logged in and free right now.
//
// Presence is deliberately separate from the registry: the roster changes
// rarely, presence changes every second.
type Presence interface {
	// Online lists agent ids with a live heartbeat.
	Online(ctx context.Context) ([]string, error)

	// Busy reports whether the agent is on a call or reserved.
	Busy(ctx context.Context, agentID string) (bool, error)

	// Hold reserves the agent for an imminent connect. Returns false when
	// someone else holds them already.
	Hold(ctx context.Context, agentID string, ttl time.Duration) (bool, error)
	ReleaseHold(ctx context.Context, agentID string) error

	// SetBusy flags the agent as on-call; ttl guards against leaked flags.
	SetBusy(ctx context.Context, agentID string, ttl time.Duration) error
	ClearBusy(ctx context.Context, agentID string) error
}

const (
	presenceKeyPrefix = "agent:online:"
	busyKeyPrefix     = "agent:busy:"
	holdKeyPrefix     = "agent:hold:"

	// HeartbeatTTL is how long a heartbeat keeps an agent online.
	HeartbeatTTL = 300 * time.Second
)

// RedisPresence keeps presence in redis with TTL-guarded keys, so a crashed
// console or a dead worker cannot leave an agent stuck online or reserved.
type RedisPresence struct {
	rdb *redis.Client
}

func NewRedisPresence(rdb *redis.Client) *RedisPresence { return &RedisPresence{rdb: rdb} }

// Heartbeat refreshes the agent's online key. The console calls this on a
// timer well below HeartbeatTTL.
func (p *RedisPresence) Heartbeat(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	return p.rdb.Set(ctx, presenceKeyPrefix+agentID, "1", HeartbeatTTL).Err()
}

// Offline drops the agent immediately instead of waiting for TTL expiry.
func (p *RedisPresence) Offline(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	return p.rdb.Del(ctx, presenceKeyPrefix+agentID, busyKeyPrefix+agentID, holdKeyPrefix+agentID).Err()
}

func (p *RedisPresence) Online(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	iter := p.rdb.Scan(ctx, 0, presenceKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		out = append(out, key[len(presenceKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("agents: presence scan: %w", err)
	}
	return out, nil
}

func (p *RedisPresence) Busy(ctx context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, ErrInvalidArgument
	}
	n, err := p.rdb.Exists(ctx, busyKeyPrefix+agentID, holdKeyPrefix+agentID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *RedisPresence) Hold(ctx context.Context, agentID string, ttl time.Duration) (bool, error) {
	if agentID == "" {
		return false, ErrInvalidArgument
	}
	if ttl <= 0 {
		return false, fmt.Errorf("agents: hold ttl must be positive")
	}
	return p.rdb.SetNX(ctx, holdKeyPrefix+agentID, "1", ttl).Result()
}

func (p *RedisPresence) ReleaseHold(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	return p.rdb.Del(ctx, holdKeyPrefix+agentID).Err()
}

func (p *RedisPresence) SetBusy(ctx context.Context, agentID string, ttl time.Duration) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return p.rdb.Set(ctx, busyKeyPrefix+agentID, "1", ttl).Err()
}

func (p *RedisPresence) ClearBusy(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	return p.rdb.Del(ctx, busyKeyPrefix+agentID).Err()
}
