package telephony

import (
	"context"
	"errors"
	"time"
)

// Gateway is the single switch-facing interface used by business logic.
//
// Rules:
// - No switch API calls outside telephony adapters.
// - Keep request/response types switch-agnostic; raw payloads go to metadata.
// - Routing decisions are not made here; adapters only translate boundary
//   events into internal types.
type Gateway interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// Originate starts an outbound call and returns the switch session.
	Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error)

	// Session reports the live state of a session. ErrSessionGone means the
	// switch no longer knows it.
	Session(ctx context.Context, sessionID string) (SessionState, error)

	// Hangup drops every leg of the session.
	Hangup(ctx context.Context, sessionID string) error

	// ActiveCount is the number of calls currently in flight on the switch.
	ActiveCount(ctx context.Context) (int, error)
}

var (
	ErrInvalidArgument = errors.New("telephony: invalid argument")

	// ErrSessionGone means the switch dropped the session without a final
	// status callback. The wait loop treats it as a candidate for a backup dial.
	ErrSessionGone = errors.New("telephony: session gone")
)

// OriginateRequest describes one outbound dial.
type OriginateRequest struct {
	// Phone is the dial string.
	Phone string `json:"phone"`

	// TrunkID selects the trunk the call leaves on.
	TrunkID string `json:"trunk_id"`

	// AgentExtension, when set, bridges the agent leg first (progressive
	// mode). Empty means predictive: the client leg is dialed bare and an
	// agent is attached on answer.
	AgentExtension string `json:"agent_extension,omitempty"`

	// ReferenceID is our call id, echoed back in switch events.
	ReferenceID string `json:"reference_id"`
}

type OriginateResult struct {
	SessionID string `json:"session_id"`
}

// SessionState is a point-in-time view of a switch session.
//
// ClientLegID being non-empty is the connect signal: the wait loop promotes
// the attempt to reached as soon as it appears.
type SessionState struct {
	SessionID   string `json:"session_id"`
	ClientLegID string `json:"client_leg_id,omitempty"`
	AgentLegID  string `json:"agent_leg_id,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// Connected reports whether the client leg is up.
func (s SessionState) Connected() bool { return s.ClientLegID != "" }
