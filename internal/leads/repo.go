package leads

import (
	"context"
	"time"
)

// Repository abstracts lead storage.
//
// Stage and Release implement the two-phase checkout: a worker stages a lead
// under its session id before dialing, and either finishes it (Update with a
// final status) or the janitor releases it when the staging window expires.
type Repository interface {
	Get(ctx context.Context, id string) (Lead, error)
	Create(ctx context.Context, l Lead) error
	Update(ctx context.Context, l Lead) error

	// ListForOrder returns every non-terminal lead of the order.
	ListForOrder(ctx context.Context, orderID string) ([]Lead, error)

	// FindByPhone resolves an incoming caller to their lead.
	FindByPhone(ctx context.Context, phone string) (Lead, error)

	// Stage checks a lead out for a dialing session. Fails with
	// ErrAlreadyStaged when another session holds it.
	Stage(ctx context.Context, id, sessionID string, at time.Time) error

	// Release returns a staged lead to the queue without recording an attempt.
	Release(ctx context.Context, id string) error

	// ReleaseStale releases every lead staged before cutoff and returns how
	// many were freed.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int, error)
}
