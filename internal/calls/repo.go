package calls

import (
	"context"
	"time"
)

// Repository abstracts call attempt storage.
type Repository interface {
	Get(ctx context.Context, id string) (Call, error)
	GetBySession(ctx context.Context, sessionID string) (Call, error)
	Create(ctx context.Context, c Call) error
	Update(ctx context.Context, c Call) error

	// ListSince returns attempts of the order started at or after since,
	// newest first, at most limit rows. The predictive controller feeds on it.
	ListSince(ctx context.Context, orderID string, since time.Time, limit int) ([]Call, error)

	// ListForLead returns the lead's finished attempts, oldest first.
	// The matcher scores agent affinity on it.
	ListForLead(ctx context.Context, leadID string) ([]Call, error)
}
