package dialer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dialer-core/internal/agents"
	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
	"dialer-core/internal/notify"
	"dialer-core/internal/orders"
	"dialer-core/internal/telephony"
	"dialer-core/internal/trunks"
)

// AckCode is the routing verdict returned to the switch for an inbound call.
// The switch plays the matching announcement or drops the call on it.
type AckCode int

const (
	// AckAccepted routes the caller to the returned agent extension.
	AckAccepted AckCode = 0

	// AckNoAgents means the caller should hear the busy announcement.
	AckNoAgents AckCode = 1

	// AckUnknownNumber means the caller is not in any campaign.
	AckUnknownNumber AckCode = 2

	// AckOrderPaused means the caller's campaign is not taking calls.
	AckOrderPaused AckCode = 3

	// AckOutsideSchedule means the campaign calendar is closed right now.
	AckOutsideSchedule AckCode = 4

	// AckLeadInProgress means an outbound attempt to this caller is already
	// in flight; the switch should bridge into it instead of starting a
	// second conversation.
	AckLeadInProgress AckCode = 5

	// AckHeld means the picked agent is reserved for another connect; the
	// switch should retry shortly.
	AckHeld AckCode = 6

	// AckRejected means the contact finished the campaign and does not get
	// routed anymore.
	AckRejected AckCode = 7

	// AckInternalError asks the switch to retry later.
	AckInternalError AckCode = 8
)

// IncomingDecision is the full answer for one inbound call.
type IncomingDecision struct {
	Ack AckCode `json:"ack"`

	// AgentID and AgentExtension are set only with AckAccepted.
	AgentID        string `json:"agent_id,omitempty"`
	AgentExtension string `json:"agent_extension,omitempty"`

	// CallID is the record created for an accepted call.
	CallID string `json:"call_id,omitempty"`
}

// HandleIncoming routes one inbound call. It never returns an error to the
// switch; any internal failure maps to AckInternalError so the switch side
// stays simple.
func (s *Service) HandleIncoming(ctx context.Context, ev telephony.IncomingEvent) IncomingDecision {
	now := s.now()

	// A call from a trunk's own number is a misrouted loop.
	if ev.To != "" && ev.From == ev.To {
		s.log.WarnContext(ctx, "incoming self-call rejected", "from", ev.From)
		return IncomingDecision{Ack: AckRejected}
	}

	trunk, onTrunk := s.trunks.ByAddress(ev.To)
	if onTrunk {
		free, err := s.trunks.Free(ctx, trunk.ID)
		if err != nil {
			s.log.ErrorContext(ctx, "incoming trunk capacity check failed", "trunk_id", trunk.ID, "error", err)
			return IncomingDecision{Ack: AckInternalError}
		}
		if !free {
			return IncomingDecision{Ack: AckNoAgents}
		}
	}

	if s.blocklist != nil {
		blocked, err := s.blocklist.Blocked(ctx, ev.From)
		if err != nil {
			// Fail open: a broken blocklist must not drop legitimate calls.
			s.log.WarnContext(ctx, "blocklist check failed", "from", ev.From, "error", err)
		} else if blocked {
			return IncomingDecision{Ack: AckRejected}
		}
	}

	lead, err := s.leads.FindByPhone(ctx, ev.From)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			return s.routeUnknownCaller(ctx, ev, trunk, onTrunk, now)
		}
		s.log.ErrorContext(ctx, "incoming lookup failed", "from", ev.From, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}

	if leads.Terminal(lead.Status) && leads.Classify(lead.Status) != leads.ClassSuccess {
		return IncomingDecision{Ack: AckRejected}
	}
	if lead.Staged() {
		return IncomingDecision{Ack: AckLeadInProgress}
	}

	order, err := s.orders.Get(ctx, lead.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return IncomingDecision{Ack: AckUnknownNumber}
		}
		s.log.ErrorContext(ctx, "incoming order lookup failed", "order_id", lead.OrderID, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}
	if !order.Dialable() {
		return IncomingDecision{Ack: AckOrderPaused}
	}
	if !order.Calendar.IsOpen(now) {
		return IncomingDecision{Ack: AckOutsideSchedule}
	}

	return s.connectIncoming(ctx, ev, order, lead, now)
}

// routeUnknownCaller handles an inbound number no lead carries. A trunk
// hard-linked to an order may create the lead on the spot; everything else
// hears the not-recognized announcement.
func (s *Service) routeUnknownCaller(ctx context.Context, ev telephony.IncomingEvent, trunk trunks.Trunk, onTrunk bool, now time.Time) IncomingDecision {
	if !onTrunk || trunk.OrderID == "" {
		return IncomingDecision{Ack: AckUnknownNumber}
	}
	order, err := s.orders.Get(ctx, trunk.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return IncomingDecision{Ack: AckUnknownNumber}
		}
		s.log.ErrorContext(ctx, "incoming linked order lookup failed", "order_id", trunk.OrderID, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}
	if order.UnknownLead == orders.UnknownLeadReject {
		return IncomingDecision{Ack: AckUnknownNumber}
	}
	if !order.Dialable() {
		return IncomingDecision{Ack: AckOrderPaused}
	}

	lead := leads.Lead{
		ID:       uuid.NewString(),
		OrderID:  order.ID,
		Phone:    ev.From,
		Priority: leads.BasePriority(0),
	}
	// Selection leads join the order's queue for retries; straight leads live
	// only inside this call and are never dialed by the queue.
	if order.UnknownLead == orders.UnknownLeadCreateSelection {
		lead.NextCallAt = now
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		s.log.ErrorContext(ctx, "incoming lead create failed", "phone", ev.From, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}
	return s.connectIncoming(ctx, ev, order, lead, now)
}

// connectIncoming reserves an agent and stages the lead for one inbound call.
func (s *Service) connectIncoming(ctx context.Context, ev telephony.IncomingEvent, order orders.Order, lead leads.Lead, now time.Time) IncomingDecision {
	agent, err := s.matcher.Next(ctx, lead.ID, orderQuery(order, agents.CallTypeIncoming))
	if err != nil {
		if errors.Is(err, agents.ErrNoAgents) {
			return IncomingDecision{Ack: AckNoAgents}
		}
		s.log.ErrorContext(ctx, "incoming match failed", "lead_id", lead.ID, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}

	ok, err := s.matcher.Reserve(ctx, agent.ID, s.cfg.IncomingHold)
	if err != nil {
		s.log.ErrorContext(ctx, "incoming reserve failed", "agent_id", agent.ID, "error", err)
		return IncomingDecision{Ack: AckInternalError}
	}
	if !ok {
		return IncomingDecision{Ack: AckHeld}
	}

	call := calls.Call{
		ID:        uuid.NewString(),
		SessionID: ev.SwitchCallID,
		OrderID:   order.ID,
		LeadID:    lead.ID,
		AgentID:   agent.ID,
		Direction: calls.DirectionIncoming,
		Phone:     ev.From,
		StartedAt: now,
	}
	if err := s.calls.Create(ctx, call); err != nil {
		s.log.ErrorContext(ctx, "incoming call record failed", "call_id", call.ID, "error", err)
		s.releaseHold(ctx, agent.ID)
		return IncomingDecision{Ack: AckInternalError}
	}
	if err := s.leads.Stage(ctx, lead.ID, call.ID, now); err != nil {
		if errors.Is(err, leads.ErrAlreadyStaged) {
			s.releaseHold(ctx, agent.ID)
			return IncomingDecision{Ack: AckLeadInProgress}
		}
		s.log.ErrorContext(ctx, "incoming stage failed", "lead_id", lead.ID, "error", err)
		s.releaseHold(ctx, agent.ID)
		return IncomingDecision{Ack: AckInternalError}
	}

	s.publish(ctx, notify.AgentChannel(agent.ID), "call.incoming", map[string]string{
		"call_id": call.ID,
		"phone":   ev.From,
	})
	return IncomingDecision{
		Ack:            AckAccepted,
		AgentID:        agent.ID,
		AgentExtension: agent.Extension,
		CallID:         call.ID,
	}
}

func (s *Service) releaseHold(ctx context.Context, agentID string) {
	if err := s.presence.ReleaseHold(ctx, agentID); err != nil {
		s.log.WarnContext(ctx, "release hold failed", "agent_id", agentID, "error", err)
	}
}
