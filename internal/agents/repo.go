package agents

import (
	"context"
	"sync"
)

// Repository abstracts the agent registry.
type Repository interface {
	Get(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context) ([]Agent, error)

	// SetMissedStreak persists the pass-over counter.
	SetMissedStreak(ctx context.Context, id string, streak int) error
}

// MemoryRepo is a simple in-memory agent registry for tests and for setups
// where the roster comes from config rather than a database.
type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]Agent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{agents: map[string]Agent{}} }

func (r *MemoryRepo) Put(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Agent, error) {
	if id == "" {
		return Agent{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepo) SetMissedStreak(ctx context.Context, id string, streak int) error {
	if id == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.MissedStreak = streak
	r.agents[id] = a
	return nil
}
