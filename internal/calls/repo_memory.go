package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory call repository for tests and early development.

type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string]Call{}} }

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	if id == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetBySession(ctx context.Context, sessionID string) (Call, error) {
	if sessionID == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.SessionID == sessionID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.SessionID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; ok {
		return ErrInvalidArgument
	}
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; !ok {
		return ErrNotFound
	}
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) ListSince(ctx context.Context, orderID string, since time.Time, limit int) ([]Call, error) {
	if orderID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.OrderID != orderID {
			continue
		}
		if c.StartedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListForLead(ctx context.Context, leadID string) ([]Call, error) {
	if leadID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.LeadID != leadID || !c.Finished() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}
