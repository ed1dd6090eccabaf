package lifecycle

import (
	"context"
	"time"

	"dialer-core/internal/leads"
)

// Transition describes one observed state change.
type Transition struct {
	Lead   leads.Lead
	From   leads.StatusCode
	To     leads.StatusCode
	Result Disposition
	At     time.Time
}

// Hooks receives lifecycle transitions. Implementations must be fast and must
// not block; anything expensive belongs behind a queue.
type Hooks interface {
	OnTransition(ctx context.Context, t Transition)
}

// NoopHooks discards all transitions.
type NoopHooks struct{}

func (NoopHooks) OnTransition(context.Context, Transition) {}

// MultiHooks fans a transition out to several observers.
type MultiHooks []Hooks

func (m MultiHooks) OnTransition(ctx context.Context, t Transition) {
	for _, h := range m {
		if h != nil {
			h.OnTransition(ctx, t)
		}
	}
}
