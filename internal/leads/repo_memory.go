package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory lead repository for tests and early development.

type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]Lead
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{leads: map[string]Lead{}} }

func (r *MemoryRepo) Get(ctx context.Context, id string) (Lead, error) {
	if id == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) Create(ctx context.Context, l Lead) error {
	if l.ID == "" || l.OrderID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[l.ID]; ok {
		return ErrInvalidArgument
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	r.leads[l.ID] = l
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, l Lead) error {
	if l.ID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[l.ID]; !ok {
		return ErrNotFound
	}
	l.UpdatedAt = time.Now()
	r.leads[l.ID] = l
	return nil
}

func (r *MemoryRepo) ListForOrder(ctx context.Context, orderID string) ([]Lead, error) {
	if orderID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lead, 0)
	for _, l := range r.leads {
		if l.OrderID != orderID {
			continue
		}
		if Terminal(l.Status) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *MemoryRepo) FindByPhone(ctx context.Context, phone string) (Lead, error) {
	if phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Lead
	found := false
	for _, l := range r.leads {
		if l.Phone != phone {
			continue
		}
		// Prefer the most recently touched lead for this number.
		if !found || l.UpdatedAt.After(best.UpdatedAt) {
			best = l
			found = true
		}
	}
	if !found {
		return Lead{}, ErrNotFound
	}
	return best, nil
}

func (r *MemoryRepo) Stage(ctx context.Context, id, sessionID string, at time.Time) error {
	if id == "" || sessionID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return ErrNotFound
	}
	if l.Staged() {
		return ErrAlreadyStaged
	}
	l.StagedAt = at
	l.SessionID = sessionID
	l.UpdatedAt = time.Now()
	r.leads[id] = l
	return nil
}

func (r *MemoryRepo) Release(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.StagedAt = time.Time{}
	l.SessionID = ""
	l.UpdatedAt = time.Now()
	r.leads[id] = l
	return nil
}

func (r *MemoryRepo) ReleaseStale(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	freed := 0
	for id, l := range r.leads {
		if l.Staged() && l.StagedAt.Before(cutoff) {
			l.StagedAt = time.Time{}
			l.SessionID = ""
			l.UpdatedAt = time.Now()
			r.leads[id] = l
			freed++
		}
	}
	return freed, nil
}
