package orders

import "context"

// Repository abstracts order storage.
//
// Orders change rarely compared to leads, so implementations are free to
// cache aggressively; the dialer re-reads an order at most once per cycle.
type Repository interface {
	Get(ctx context.Context, id string) (Order, error)
	ListActive(ctx context.Context) ([]Order, error)
	SetStatus(ctx context.Context, id string, status Status) error
}
