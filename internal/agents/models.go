package agents

import "errors"

var (
	ErrNotFound        = errors.New("agents: not found")
	ErrInvalidArgument = errors.New("agents: invalid argument")

	// ErrNoAgents means nobody eligible is free right now.
	ErrNoAgents = errors.New("agents: no eligible agent available")
)

// PhoneMode restricts which call directions an agent's phone takes part in.
type PhoneMode string

const (
	// PhoneModeDefault takes outgoing and incoming calls.
	PhoneModeDefault PhoneMode = "default"

	PhoneModeOutgoingOnly PhoneMode = "outgoing_only"
	PhoneModeIncomingOnly PhoneMode = "incoming_only"

	// PhoneModePredictive opts the agent into machine-paced dialing.
	PhoneModePredictive PhoneMode = "predictive"
)

// CallType is the direction a matcher request is for.
type CallType string

const (
	CallTypeOutgoing   CallType = "outgoing"
	CallTypeIncoming   CallType = "incoming"
	CallTypePredictive CallType = "predictive"
)

// Agent is one operator seat.
type Agent struct {
	ID        string
	Name      string
	Extension string
	Mode      PhoneMode

	// GroupIDs are the teams the agent belongs to; orders may restrict
	// themselves to certain groups.
	GroupIDs []string

	// Training marks a seat in training. Training seats only get simulated
	// calls and live traffic never reaches them.
	Training bool

	// MissedStreak counts consecutive assignments the agent did not pick up.
	// Past the configured limit the matcher passes the agent over until they
	// complete a call.
	MissedStreak int
}

// InGroup reports membership in any of the given groups.
func (a Agent) InGroup(groups []string) bool {
	for _, g := range groups {
		for _, mine := range a.GroupIDs {
			if g == mine {
				return true
			}
		}
	}
	return false
}

// Takes reports whether the agent's phone mode admits this call type.
func (a Agent) Takes(t CallType) bool {
	switch a.Mode {
	case PhoneModeDefault:
		return t == CallTypeOutgoing || t == CallTypeIncoming
	case PhoneModeOutgoingOnly:
		return t == CallTypeOutgoing
	case PhoneModeIncomingOnly:
		return t == CallTypeIncoming
	case PhoneModePredictive:
		return t == CallTypePredictive || t == CallTypeIncoming
	default:
		return false
	}
}
