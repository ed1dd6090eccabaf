package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
	"dialer-core/internal/schedule"
)

// Fixed cool-downs and boosts. These mirror the upstream CRM contract; the
// per-order retry ladder covers everything else.
const (
	// recallDelay applies to priority recalls and carrier-side drops.
	recallDelay = 300 * time.Second

	// operatorRecallDelay applies to recalls initiated from the agent console.
	operatorRecallDelay = 1250 * time.Second

	// hungUpCooldown is the floor before re-dialing someone who hung up.
	hungUpCooldown = 2 * time.Hour

	// postponedCooldown parks a postponed lead.
	postponedCooldown = 2 * time.Hour

	// fallbackDelay is used when an order carries no retry ladder at all.
	fallbackDelay = 1500 * time.Second

	// recallPriority pins recalls above every decayed base priority.
	recallPriority = 15
)

var (
	ErrInvalidArgument = errors.New("lifecycle: invalid argument")

	// ErrNoDialWindow wraps schedule.ErrNoOpenSlot with lead context.
	ErrNoDialWindow = errors.New("lifecycle: no dial window within horizon")
)

type Disposition string

const (
	// DispositionRescheduled keeps the lead in the queue with a new time.
	DispositionRescheduled Disposition = "rescheduled"

	// DispositionSucceeded and DispositionFailed are terminal.
	DispositionSucceeded Disposition = "succeeded"
	DispositionFailed    Disposition = "failed"
)

// Outcome is everything the gateway reports about a finished attempt.
type Outcome struct {
	Status leads.StatusCode

	// Comment is the agent's free-text note. Kept on the lead only for
	// rejections, where it explains why the client is gone.
	Comment string

	// Final marks the campaign's closing attempt for this lead. An
	// agreement reached on the final attempt needs no confirming call and
	// is recorded as confirmed outright.
	Final bool
}

// Result is the machine's verdict on a finished attempt.
type Result struct {
	Disposition Disposition

	// Lead is the updated copy; the caller persists it.
	Lead leads.Lead

	// Requalify asks the caller to spawn a re-qualification link for
	// fail-straight dispositions.
	Requalify bool

	Reason string
}

// Config tunes the machine. Zero values get safe defaults.
type Config struct {
	// CalendarHorizon bounds the search for the next dial window.
	CalendarHorizon time.Duration

	// MissedStreakLimit is the number of consecutive carrier drops after
	// which the lead is forced out with a call limit.
	MissedStreakLimit int

	// Statuses maps CRM dispositions to queue classes. Nil takes the
	// mapping the CRM ships with; deployments override it when the CRM
	// grows new dispositions.
	Statuses leads.StatusMap

	Hooks Hooks
}

// Machine applies attempt outcomes to leads.
//
// It is pure state logic: no storage, no gateway. Callers persist the
// returned lead and fire whatever follow-ups the result asks for.
type Machine struct {
	horizon     time.Duration
	missedLimit int
	statuses    leads.StatusMap
	hooks       Hooks
}

func NewMachine(cfg Config) *Machine {
	m := &Machine{
		horizon:     cfg.CalendarHorizon,
		missedLimit: cfg.MissedStreakLimit,
		statuses:    cfg.Statuses,
		hooks:       cfg.Hooks,
	}
	if m.horizon <= 0 {
		m.horizon = 366 * 24 * time.Hour
	}
	if m.missedLimit <= 0 {
		m.missedLimit = 3
	}
	if m.statuses == nil {
		m.statuses = leads.DefaultStatusMap()
	}
	if m.hooks == nil {
		m.hooks = NoopHooks{}
	}
	return m
}

// RecordOutcome applies the disposition of a finished attempt and computes
// where the lead goes next.
func (m *Machine) RecordOutcome(ctx context.Context, lead leads.Lead, order orders.Order, out Outcome, now time.Time) (Result, error) {
	if lead.ID == "" || order.ID == "" {
		return Result{}, ErrInvalidArgument
	}
	if out.Status == leads.StatusNone {
		return Result{}, fmt.Errorf("%w: outcome status required", ErrInvalidArgument)
	}

	prev := lead.Status
	lead.Status = out.Status
	lead.LastCallAt = now
	lead.StagedAt = time.Time{}
	lead.SessionID = ""
	lead.AttemptCount++

	if leads.GoodAttempt(out.Status) {
		lead.GoodAttemptCount++
	}
	if out.Status == leads.StatusCarrierMissed {
		lead.MissedStreak++
	} else {
		lead.MissedStreak = 0
	}
	if out.Status == leads.StatusHungUp {
		lead.HungUpCount++
	}
	// Only ladder-consuming attempts move the counted position; recalls and
	// carrier drops leave it alone so they never eat into the allowance.
	if leads.CountsTowardLadder(out.Status) {
		lead.CountedAttempts++
	}
	if leads.ResetsLadder(out.Status) {
		lead.ResetCount++
		lead.WrapOffset = lead.CountedAttempts
	}

	res, err := m.decide(lead, order, out, now)
	if err != nil {
		return Result{}, err
	}
	m.hooks.OnTransition(ctx, Transition{
		Lead:   res.Lead,
		From:   prev,
		To:     res.Lead.Status,
		Result: res.Disposition,
		At:     now,
	})
	return res, nil
}

func (m *Machine) decide(lead leads.Lead, order orders.Order, out Outcome, now time.Time) (Result, error) {
	switch m.statuses.Classify(out.Status) {
	case leads.ClassSuccess:
		lead.Confirmed = true
		return Result{Disposition: DispositionSucceeded, Lead: lead, Reason: "reached"}, nil
	case leads.ClassDark:
		// The agreement stands, but it only counts as confirmed when there
		// was no room left for a confirming call.
		lead.Confirmed = out.Final
		return Result{Disposition: DispositionSucceeded, Lead: lead, Reason: "agreed"}, nil
	case leads.ClassFailed:
		lead.Comment = out.Comment
		return Result{Disposition: DispositionFailed, Lead: lead, Reason: "terminal status"}, nil
	case leads.ClassFailedStraight:
		lead.Comment = out.Comment
		return Result{Disposition: DispositionFailed, Lead: lead, Requalify: true, Reason: "disqualified"}, nil
	}

	// A client that drops the call repeatedly leaves the ladder.
	if lead.Broken() {
		lead.Status = leads.StatusCallLimit
		return Result{Disposition: DispositionFailed, Lead: lead, Reason: "broken number"}, nil
	}

	// Carrier drops do not consume ladder rungs, but a streak of them means
	// the number is unroutable right now.
	if out.Status == leads.StatusCarrierMissed && lead.MissedStreak >= m.missedLimit {
		lead.Status = leads.StatusCallLimit
		return Result{Disposition: DispositionFailed, Lead: lead, Reason: "carrier missed streak"}, nil
	}

	if leads.CountsTowardLadder(out.Status) {
		if cap := order.Plan.EffectiveCap(lead.ResetCount); cap > 0 && lead.CountedAttempts >= cap {
			lead.Status = leads.StatusCallLimit
			return Result{Disposition: DispositionFailed, Lead: lead, Reason: "attempt cap reached"}, nil
		}
	}

	delay, priority := m.nextDelay(lead, order, out.Status)
	lead.Priority = priority

	next, err := schedule.NextCallAt(now, nil, []time.Duration{delay}, &order.Calendar, m.horizon, lead.ClientOffset())
	if err != nil {
		if errors.Is(err, schedule.ErrNoOpenSlot) {
			return Result{}, fmt.Errorf("%w: lead %s", ErrNoDialWindow, lead.ID)
		}
		return Result{}, err
	}
	lead.NextCallAt = next
	return Result{Disposition: DispositionRescheduled, Lead: lead, Reason: reasonFor(out.Status)}, nil
}

// nextDelay picks the wait before the next attempt and the lead's priority.
func (m *Machine) nextDelay(lead leads.Lead, order orders.Order, status leads.StatusCode) (time.Duration, int) {
	base := leads.BasePriority(lead.GoodAttemptCount)

	switch status {
	case leads.StatusPriorityRecall:
		return recallDelay, recallPriority
	case leads.StatusOperatorRecall:
		return operatorRecallDelay, recallPriority
	case leads.StatusCarrierMissed:
		return recallDelay, base
	case leads.StatusClientRecall, leads.StatusScheduledRecall, leads.StatusCallbackRequested:
		if !order.Plan.CallbackDelayFromHistory && order.Plan.CallbackDelay > 0 {
			return order.Plan.CallbackDelay, recallPriority
		}
		return m.ladderDelay(lead, order), recallPriority
	case leads.StatusHungUp:
		d := m.ladderDelay(lead, order)
		if d < hungUpCooldown {
			d = hungUpCooldown
		}
		return d, base
	case leads.StatusPostponed:
		return postponedCooldown, base
	default:
		return m.ladderDelay(lead, order), base
	}
}

// ladderDelay walks the order's retry intervals from the lead's counted
// position, rewound by any wrap the lead earned. Past the configured rungs
// the ladder extends cyclically from its second entry.
func (m *Machine) ladderDelay(lead leads.Lead, order orders.Order) time.Duration {
	intervals := order.Plan.RetryIntervals
	if len(intervals) == 0 {
		return fallbackDelay
	}
	pos := lead.CountedAttempts - 1 - lead.WrapOffset
	if pos < 0 {
		pos = 0
	}
	return schedule.IntervalAt(intervals, pos)
}

func reasonFor(status leads.StatusCode) string {
	switch status {
	case leads.StatusNoAnswer:
		return "no answer"
	case leads.StatusVoicemail:
		return "voicemail"
	case leads.StatusHungUp:
		return "hung up"
	case leads.StatusCarrierMissed:
		return "carrier missed"
	case leads.StatusPriorityRecall, leads.StatusOperatorRecall,
		leads.StatusClientRecall, leads.StatusScheduledRecall, leads.StatusCallbackRequested:
		return "recall"
	case leads.StatusPostponed:
		return "postponed"
	default:
		return "retry"
	}
}
