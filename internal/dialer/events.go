package dialer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dialer-core/internal/agents"
	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
	"dialer-core/internal/lifecycle"
	"dialer-core/internal/notify"
	"dialer-core/internal/telephony"
)

// HandleLegEvent applies a switch leg notification to the matching call.
//
// Events for unknown or already finished sessions are acknowledged and
// logged: the switch retries on errors, and a retry cannot make a dead
// session less dead.
func (s *Service) HandleLegEvent(ctx context.Context, ev telephony.LegEvent) error {
	if !telephony.KnownLegRole(ev.Role) {
		s.log.WarnContext(ctx, "leg event with unknown role", "session_id", ev.SessionID, "role", ev.Role)
		return nil
	}

	call, err := s.calls.GetBySession(ctx, ev.SessionID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			s.log.WarnContext(ctx, "leg event for unknown session", "session_id", ev.SessionID)
			return nil
		}
		return err
	}
	if call.Finished() {
		s.log.WarnContext(ctx, "leg event after finish", "session_id", ev.SessionID, "call_id", call.ID)
		return nil
	}

	switch ev.Role {
	case telephony.LegRoleClient:
		if ev.Connected && call.AnsweredAt.IsZero() {
			call.AnsweredAt = ev.OccurredAt
			if call.Direction == calls.DirectionOutbound && call.AgentID == "" {
				return s.delegate(ctx, call, ev.OccurredAt)
			}
			if err := s.calls.Update(ctx, call); err != nil {
				return fmt.Errorf("mark answered %s: %w", call.ID, err)
			}
		}
	case telephony.LegRoleOperator:
		if ev.Connected && call.AgentID != "" {
			if err := s.presence.SetBusy(ctx, call.AgentID, busyTTL); err != nil {
				s.log.WarnContext(ctx, "set busy failed", "agent_id", call.AgentID, "error", err)
			}
			if err := s.matcher.RecordTaken(ctx, call.AgentID); err != nil {
				s.log.WarnContext(ctx, "clear missed streak failed", "agent_id", call.AgentID, "error", err)
			}
			s.publish(ctx, notify.AgentChannel(call.AgentID), "call.connected", map[string]string{
				"call_id": call.ID,
				"phone":   call.Phone,
			})
		}
	}
	return nil
}

// delegate assigns a ready agent to a predictive call whose client leg just
// came up. With nobody free the client would hear dead air, so the call is
// cut and the attempt closed as a hang-up.
func (s *Service) delegate(ctx context.Context, call calls.Call, at time.Time) error {
	order, err := s.orders.Get(ctx, call.OrderID)
	if err != nil {
		return fmt.Errorf("delegate call %s: %w", call.ID, err)
	}
	agent, err := s.matcher.Next(ctx, call.LeadID, orderQuery(order, agents.CallTypePredictive))
	if err != nil && !errors.Is(err, agents.ErrNoAgents) {
		return fmt.Errorf("delegate call %s: %w", call.ID, err)
	}
	if err == nil {
		if held, herr := s.matcher.Reserve(ctx, agent.ID, s.cfg.IncomingHold); herr == nil && held {
			call.AgentID = agent.ID
			if uerr := s.calls.Update(ctx, call); uerr != nil {
				return fmt.Errorf("assign call %s: %w", call.ID, uerr)
			}
			s.publish(ctx, notify.AgentChannel(agent.ID), "call.predictive", map[string]string{
				"call_id":   call.ID,
				"phone":     call.Phone,
				"extension": agent.Extension,
			})
			return nil
		}
	}

	s.log.WarnContext(ctx, "predictive call abandoned", "call_id", call.ID)
	if herr := s.router.gateway.Hangup(ctx, call.SessionID); herr != nil && !errors.Is(herr, telephony.ErrSessionGone) {
		s.log.WarnContext(ctx, "hangup failed", "session_id", call.SessionID, "error", herr)
	}
	return s.completeAttempt(ctx, call, lifecycle.Outcome{Status: leads.StatusHungUp}, at)
}

// HandleFinishEvent records the final disposition of a session: it closes the
// call record, frees the trunk and agent, and runs the lead through the
// lifecycle machine.
func (s *Service) HandleFinishEvent(ctx context.Context, ev telephony.FinishEvent) error {
	call, err := s.calls.GetBySession(ctx, ev.SessionID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			s.log.WarnContext(ctx, "finish event for unknown session", "session_id", ev.SessionID)
			return nil
		}
		return err
	}
	if call.Finished() {
		s.log.WarnContext(ctx, "duplicate finish event", "session_id", ev.SessionID, "call_id", call.ID)
		return nil
	}

	call.EndedAt = ev.OccurredAt
	call.TalkSeconds = ev.TalkSeconds
	return s.completeAttempt(ctx, call, lifecycle.Outcome{
		Status:  leads.StatusCode(ev.StatusCode),
		Comment: ev.Comment,
		Final:   ev.FinalAttempt,
	}, ev.OccurredAt)
}

// completeAttempt is the single exit path for an attempt: the finish webhook
// and the router's no-answer both land here.
func (s *Service) completeAttempt(ctx context.Context, call calls.Call, out lifecycle.Outcome, at time.Time) error {
	call.Status = out.Status
	if call.EndedAt.IsZero() {
		call.EndedAt = at
	}
	if err := s.calls.Update(ctx, call); err != nil {
		return fmt.Errorf("finalize call %s: %w", call.ID, err)
	}

	if call.TrunkID != "" && call.Reached() {
		// Unreached outbound calls released their trunk in the router.
		if err := s.trunks.Release(ctx, call.TrunkID); err != nil {
			s.log.WarnContext(ctx, "trunk release failed", "trunk_id", call.TrunkID, "error", err)
		}
	}
	if call.AgentID != "" {
		if call.Reached() {
			// An agent who never went busy on a reached call did not pick
			// up their bridge leg; that counts against their streak.
			if busy, berr := s.presence.Busy(ctx, call.AgentID); berr == nil && !busy {
				if merr := s.matcher.RecordMissed(ctx, call.AgentID); merr != nil {
					s.log.WarnContext(ctx, "record missed failed", "agent_id", call.AgentID, "error", merr)
				}
			}
		}
		if err := s.presence.ClearBusy(ctx, call.AgentID); err != nil {
			s.log.WarnContext(ctx, "clear busy failed", "agent_id", call.AgentID, "error", err)
		}
		if err := s.presence.ReleaseHold(ctx, call.AgentID); err != nil {
			s.log.WarnContext(ctx, "release hold failed", "agent_id", call.AgentID, "error", err)
		}
	}

	if call.LeadID == "" {
		return nil
	}
	lead, err := s.leads.Get(ctx, call.LeadID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", call.LeadID, err)
	}
	order, err := s.orders.Get(ctx, lead.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", lead.OrderID, err)
	}

	// A priority recall that got the client back on the line finishes as a
	// conversion, whatever disposition the console picked.
	if out.Status == leads.StatusCompleted && lead.Status == leads.StatusPriorityRecall && call.Reached() {
		out.Status = leads.StatusRecallConverted
	}

	res, err := s.machine.RecordOutcome(ctx, lead, order, out, at)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNoDialWindow) {
			// Park the lead unstaged; the next cycle picks it up once a
			// window opens. Outside the horizon this is effectively over.
			s.log.WarnContext(ctx, "no dial window for lead", "lead_id", lead.ID)
			if rerr := s.leads.Release(ctx, lead.ID); rerr != nil && !errors.Is(rerr, leads.ErrNotFound) {
				return rerr
			}
			return nil
		}
		return fmt.Errorf("record outcome for lead %s: %w", lead.ID, err)
	}
	if err := s.leads.Update(ctx, res.Lead); err != nil {
		return fmt.Errorf("persist lead %s: %w", lead.ID, err)
	}

	if res.Requalify {
		if err := s.requalify(ctx, res.Lead, at); err != nil {
			s.log.ErrorContext(ctx, "requalification failed", "lead_id", lead.ID, "error", err)
		}
	}

	s.publish(ctx, notify.ChannelQueue, "lead.finished", map[string]any{
		"lead_id":     res.Lead.ID,
		"order_id":    order.ID,
		"disposition": string(res.Disposition),
		"reason":      res.Reason,
	})
	return nil
}

// requalify spawns a linked lead in the requalification order so a
// disqualified contact gets a second look there.
func (s *Service) requalify(ctx context.Context, from leads.Lead, at time.Time) error {
	if s.requalOrderID == "" {
		return nil
	}
	linked := leads.Lead{
		ID:           uuid.NewString(),
		OrderID:      s.requalOrderID,
		Phone:        from.Phone,
		CountryCode:  from.CountryCode,
		TimeZone:     from.TimeZone,
		Priority:     leads.BasePriority(0),
		NextCallAt:   at,
		LinkedFromID: from.ID,
	}
	return s.leads.Create(ctx, linked)
}
