package orders

import (
	"errors"
	"time"

	"dialer-core/internal/schedule"
)

var (
	ErrNotFound        = errors.New("orders: not found")
	ErrInvalidArgument = errors.New("orders: invalid argument")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Mode selects how leads of this order reach agents.
//
// In progressive mode a call starts only when a concrete agent is reserved.
// In predictive mode the flow controller may start calls ahead of agent
// availability and connect whoever frees up first.
type Mode string

const (
	ModeProgressive Mode = "progressive"
	ModePredictive  Mode = "predictive"
)

// DialPlan is the per-order retry policy.
type DialPlan struct {
	// RetryIntervals is the base ladder of delays between attempts.
	// Attempt n waits RetryIntervals[n] after attempt n-1; when a lead earns
	// extra attempts the ladder is walked again from a wrap position.
	RetryIntervals []time.Duration

	// MaxTotalCalls caps attempts regardless of how many ladder extensions
	// the lead earned. Zero means the ladder length is the cap.
	MaxTotalCalls int

	// ResetAllowed lets no-answer outcomes rewind the ladder and extend the
	// attempt allowance. Plans without it keep the base ladder as the cap no
	// matter how many resets a lead accumulated.
	ResetAllowed bool

	// CallbackDelay overrides the ladder for client-requested callbacks.
	// Ignored when CallbackDelayFromHistory is set, in which case the delay
	// for the current ladder position applies instead.
	CallbackDelay            time.Duration
	CallbackDelayFromHistory bool
}

// EffectiveCap returns the hard attempt ceiling for a lead that has seen
// resets resetCount times. When the plan allows resets, one reset doubles
// the base ladder and further resets multiply it; MaxTotalCalls always wins.
func (p DialPlan) EffectiveCap(resetCount int) int {
	base := len(p.RetryIntervals)
	if base == 0 {
		return 0
	}
	n := base
	if p.ResetAllowed {
		switch {
		case resetCount == 1:
			n = base * 2
		case resetCount >= 2:
			n = base * resetCount
		}
	}
	if p.MaxTotalCalls > 0 && n > p.MaxTotalCalls {
		n = p.MaxTotalCalls
	}
	return n
}

// UnknownLeadAction decides what happens when an inbound call arrives on a
// trunk hard-linked to this order from a number no lead carries.
type UnknownLeadAction string

const (
	// UnknownLeadReject plays the not-recognized announcement.
	UnknownLeadReject UnknownLeadAction = ""

	// UnknownLeadCreateSelection creates a lead that joins the order's
	// dialing queue, so a failed conversation gets a retry later.
	UnknownLeadCreateSelection UnknownLeadAction = "create_selection"

	// UnknownLeadCreateStraight creates a lead handled only within the
	// inbound call itself; the queue never dials it on its own.
	UnknownLeadCreateStraight UnknownLeadAction = "create_straight"
)

// Order is a dialing campaign.
type Order struct {
	ID     string
	Name   string
	Status Status
	Mode   Mode

	Plan DialPlan

	// Calendar bounds when this order's leads may be dialed.
	Calendar schedule.Calendar

	// TrunkScheme names the trunk selection strategy for this order.
	// Empty means the trunk pool default.
	TrunkScheme string

	// AgentIDs and AgentGroups restrict which seats take this order's calls.
	// Both empty means every eligible agent qualifies.
	AgentIDs    []string
	AgentGroups []string

	// UnknownLead controls inbound calls from numbers outside the order.
	UnknownLead UnknownLeadAction

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dialable reports whether leads of this order may be called at all.
func (o Order) Dialable() bool {
	return o.Status == StatusActive
}
