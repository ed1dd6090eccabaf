package reporting

import (
	"context"
	"sync"
	"time"

	"dialer-core/internal/calls"
)

// MemoryRepo serves reports from an in-memory attempt list.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []calls.Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, orderID string, from, to time.Time) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.OrderID != orderID {
			continue
		}
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
