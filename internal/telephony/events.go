package telephony

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Boundary events the switch pushes to us over HTTP hooks.
//
// Parsing lives here so handler code stays free of switch field names.

// LegRole identifies which participant a leg belongs to.
type LegRole string

const (
	LegRoleClient   LegRole = "client"
	LegRoleOperator LegRole = "operator"
	LegRoleAI       LegRole = "ai"
	LegRoleTransfer LegRole = "transfer"
)

// KnownLegRole reports whether the switch sent a role we understand.
func KnownLegRole(r LegRole) bool {
	switch r {
	case LegRoleClient, LegRoleOperator, LegRoleAI, LegRoleTransfer:
		return true
	default:
		return false
	}
}

// LegEvent is sent when a leg joins or leaves a session.
type LegEvent struct {
	SessionID string  `json:"session_id"`
	LegID     string  `json:"leg_id"`
	Role      LegRole `json:"role"`
	Connected bool    `json:"connected"`

	OccurredAt time.Time `json:"occurred_at"`
}

// FinishEvent is the switch's final word on a session.
type FinishEvent struct {
	SessionID string `json:"session_id"`

	// StatusCode is the CRM disposition chosen by the agent console, or a
	// switch-assigned code for unattended outcomes.
	StatusCode int64 `json:"status_code"`

	TalkSeconds int `json:"talk_seconds"`

	// Comment is the agent's free-text note from the console.
	Comment string `json:"comment,omitempty"`

	// FinalAttempt marks the campaign's closing attempt for this lead, as
	// decided on the console.
	FinalAttempt bool `json:"final_attempt,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// IncomingEvent announces an inbound call waiting on the switch.
type IncomingEvent struct {
	SwitchCallID string `json:"switch_call_id"`

	From string `json:"from"`
	To   string `json:"to"`

	OccurredAt time.Time `json:"occurred_at"`

	// RawPayload is kept for debugging; store as JSON string.
	RawPayload string `json:"raw_payload,omitempty"`
}

func ParseLegEvent(r *http.Request) (LegEvent, error) {
	var ev LegEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		return LegEvent{}, err
	}
	if ev.SessionID == "" || ev.LegID == "" {
		return LegEvent{}, ErrInvalidArgument
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return ev, nil
}

func ParseFinishEvent(r *http.Request) (FinishEvent, error) {
	var ev FinishEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		return FinishEvent{}, err
	}
	if ev.SessionID == "" || ev.StatusCode == 0 {
		return FinishEvent{}, ErrInvalidArgument
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return ev, nil
}

func ParseIncomingEvent(r *http.Request) (IncomingEvent, error) {
	var ev IncomingEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		return IncomingEvent{}, err
	}
	ev.From = normalizePhone(ev.From)
	ev.To = normalizePhone(ev.To)
	if ev.SwitchCallID == "" || ev.From == "" {
		return IncomingEvent{}, ErrInvalidArgument
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return ev, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Some switches send "anonymous" for withheld numbers; keep as-is.
	return strings.TrimPrefix(s, "tel:")
}
