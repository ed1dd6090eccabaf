package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channels consoles subscribe to.
const (
	// ChannelQueue carries queue snapshot updates per order.
	ChannelQueue = "dialer:queue"

	// ChannelAlerts carries operational warnings (quota, stuck leads).
	ChannelAlerts = "dialer:alerts"
)

// AgentChannel is the per-agent channel for connect pushes.
func AgentChannel(agentID string) string { return "dialer:agent:" + agentID }

// Event is the envelope published on every channel.
type Event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Notifier pushes events to live consoles. Delivery is fire-and-forget;
// consoles that miss an event re-read state over HTTP.
type Notifier interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

// RedisNotifier publishes JSON events over redis pub/sub.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier { return &RedisNotifier{rdb: rdb} }

func (n *RedisNotifier) Publish(ctx context.Context, channel string, ev Event) error {
	if channel == "" {
		return fmt.Errorf("notify: channel required")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, channel, raw).Err()
}

// NoopNotifier discards everything.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, string, Event) error { return nil }
