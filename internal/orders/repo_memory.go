package orders

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory order repository for tests and early development.

type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]Order
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{orders: map[string]Order{}} }

func (r *MemoryRepo) Put(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.Status == StatusActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, status Status) error {
	if id == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	return nil
}
