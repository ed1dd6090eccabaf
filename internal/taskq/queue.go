package taskq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task is one unit of asynchronous work.
type Task struct {
	ID   string          `json:"id"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler processes one task. Returning an error logs and drops the task;
// handlers that need retries enqueue a fresh task themselves.
type Handler func(ctx context.Context, t Task) error

// Queue is a redis-list work queue. Producers LPUSH, the consumer BRPOPs, so
// tasks come out in enqueue order and survive process restarts.
type Queue struct {
	rdb *redis.Client
	key string
	log *slog.Logger
}

func New(rdb *redis.Client, key string, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{rdb: rdb, key: key, log: log}
}

func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	if t.ID == "" || t.Kind == "" {
		return fmt.Errorf("taskq: task id and kind required")
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("taskq: marshal task: %w", err)
	}
	return q.rdb.LPush(ctx, q.key, raw).Err()
}

// Len is the number of waiting tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Consume blocks on the queue until ctx is done, dispatching each task to
// handler. Poison tasks are logged and skipped.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	for {
		res, err := q.rdb.BRPop(ctx, 2*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Error("task pop failed", "queue", q.key, "err", err)
			// Back off so a dead redis does not spin the loop hot.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if len(res) != 2 {
			continue
		}

		var t Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			q.log.Error("task decode failed", "queue", q.key, "err", err)
			continue
		}
		if err := handler(ctx, t); err != nil {
			q.log.Error("task handler failed", "queue", q.key, "task_id", t.ID, "kind", t.Kind, "err", err)
		}
	}
}
