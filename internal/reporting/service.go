package reporting

import (
	"context"
	"errors"
	"time"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository lists finished and in-flight attempts for one order within
// a window, filtered on StartedAt.
type Repository interface {
	ListCalls(ctx context.Context, orderID string, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// OrderSummary aggregates every attempt of the order inside the window.
func (s *Service) OrderSummary(ctx context.Context, req OrderSummaryRequest) (OrderSummary, error) {
	if req.OrderID == "" || !req.Range.Valid() {
		return OrderSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return OrderSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.OrderID, req.Range.From, req.Range.To)
	if err != nil {
		return OrderSummary{}, err
	}

	out := OrderSummary{OrderID: req.OrderID, Range: req.Range}
	for _, c := range rows {
		out.TotalAttempts++
		out.TotalTalkSeconds += c.TalkSeconds
		if c.Direction == calls.DirectionIncoming {
			out.Incoming++
		}
		if c.Reached() {
			out.Reached++
		}
		if !c.Finished() {
			out.InFlight++
			continue
		}
		switch c.Status {
		case leads.StatusCompleted, leads.StatusRecallConverted:
			out.Conversions++
		case leads.StatusNoAnswer:
			out.NoAnswers++
		case leads.StatusVoicemail:
			out.Voicemails++
		case leads.StatusHungUp:
			out.HungUps++
		case leads.StatusCarrierMissed:
			out.CarrierMissed++
		}
	}
	if out.TotalAttempts > 0 {
		total := float64(out.TotalAttempts)
		out.AvgTalkSeconds = float64(out.TotalTalkSeconds) / total
		out.ReachRate = float64(out.Reached) / total
		out.ConversionRate = float64(out.Conversions) / total
	}
	return out, nil
}
