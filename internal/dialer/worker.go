package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dialer-core/internal/leads"
	"dialer-core/internal/lifecycle"
	"dialer-core/internal/taskq"
)

// HandleTask is the taskq handler for dial tasks. Errors returned here drop
// the task; transient states (lead already taken, order paused meanwhile)
// are logged and acknowledged because the cycle regenerates them.
func (s *Service) HandleTask(ctx context.Context, t taskq.Task) error {
	if t.Kind != TaskKindDial {
		return fmt.Errorf("dialer: unknown task kind %q", t.Kind)
	}
	var dt dialTask
	if err := json.Unmarshal(t.Data, &dt); err != nil {
		return fmt.Errorf("dialer: decode dial task: %w", err)
	}
	// A task that sat in the queue past the staging window describes a world
	// that no longer exists: the cycle has already reclaimed the lead and
	// will enqueue a fresh task if it is still due.
	if !t.EnqueuedAt.IsZero() && s.now().Sub(t.EnqueuedAt) >= s.cfg.StagingWindow {
		s.log.WarnContext(ctx, "dropping stale dial task",
			"task_id", t.ID, "lead_id", dt.LeadID, "enqueued_at", t.EnqueuedAt)
		s.dropReservation(ctx, dt.AgentID)
		return nil
	}
	return s.runDial(ctx, dt)
}

func (s *Service) runDial(ctx context.Context, dt dialTask) error {
	lead, err := s.leads.Get(ctx, dt.LeadID)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			s.log.WarnContext(ctx, "dial task for missing lead", "lead_id", dt.LeadID)
			s.dropReservation(ctx, dt.AgentID)
			return nil
		}
		return err
	}
	order, err := s.orders.Get(ctx, dt.OrderID)
	if err != nil {
		return err
	}
	if !order.Dialable() {
		// Paused between enqueue and pickup.
		s.dropReservation(ctx, dt.AgentID)
		return nil
	}

	res, err := s.router.Dial(ctx, DialRequest{
		Lead:           lead,
		Order:          order,
		AgentID:        dt.AgentID,
		AgentExtension: dt.AgentExtension,
		FlowAtDial:     dt.FlowAtDial,
	})
	if err != nil {
		s.dropReservation(ctx, dt.AgentID)
		if errors.Is(err, leads.ErrAlreadyStaged) {
			s.log.InfoContext(ctx, "lead taken by another session", "lead_id", lead.ID)
			return nil
		}
		return err
	}

	if res.Reached {
		// Live call; the finish event completes it.
		return nil
	}
	return s.completeAttempt(ctx, res.Call, lifecycle.Outcome{Status: leads.StatusNoAnswer}, s.now())
}

func (s *Service) dropReservation(ctx context.Context, agentID string) {
	if agentID == "" {
		return
	}
	s.releaseHold(ctx, agentID)
}
