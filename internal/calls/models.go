package calls

import (
	"errors"
	"time"

	"dialer-core/internal/leads"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionIncoming Direction = "incoming"
)

// Call is one dial attempt, outbound or incoming.
//
// SessionID ties the record to the switch session; every gateway event
// carries it and a mismatch means the event belongs to a dead attempt.
type Call struct {
	ID        string
	SessionID string

	OrderID string
	LeadID  string
	AgentID string
	TrunkID string

	Direction Direction
	Phone     string

	// Status is the final CRM disposition; zero while the call is live.
	Status leads.StatusCode

	// FlowAtDial is how many calls were in flight when this one started.
	// The predictive controller averages it to estimate sustainable flow.
	FlowAtDial int

	// BackupDials counts wait-loop re-arms after the switch lost the session.
	BackupDials int

	StartedAt  time.Time
	AnsweredAt time.Time
	EndedAt    time.Time

	TalkSeconds int
}

// Finished reports whether a final disposition was recorded.
func (c Call) Finished() bool { return c.Status != leads.StatusNone && !c.EndedAt.IsZero() }

// Reached reports whether the attempt got a human on the line.
func (c Call) Reached() bool { return !c.AnsweredAt.IsZero() }
