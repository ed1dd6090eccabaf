package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dialer-core/internal/lifecycle"
)

// Repository is the persistence contract for journal events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service journals lead transitions and manual order actions.
//
// IMPORTANT:
// - The journal is internal-only; it is not a tenant-facing feature.
// - Callers treat journaling as best-effort.

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.LeadID == "" && e.OrderID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// OnTransition journals one lifecycle transition. Satisfies lifecycle.Hooks,
// so the machine can be constructed with the journal attached.
func (s *Service) OnTransition(ctx context.Context, tr lifecycle.Transition) {
	err := s.Append(ctx, Event{
		Type:        EventTypeTransition,
		LeadID:      tr.Lead.ID,
		OrderID:     tr.Lead.OrderID,
		FromStatus:  int64(tr.From),
		ToStatus:    int64(tr.To),
		Disposition: string(tr.Result),
		CreatedAt:   tr.At,
	})
	if err != nil {
		s.log.WarnContext(ctx, "transition journal append failed", "lead_id", tr.Lead.ID, "error", err)
	}
}

// LogOrderAction records a manual pause or resume.
func (s *Service) LogOrderAction(ctx context.Context, orderID, action string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeOrderAction,
		OrderID: orderID,
		Message: action,
	})
}
