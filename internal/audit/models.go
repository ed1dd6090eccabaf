package audit

import "time"

// Event is an immutable, append-only journal record.
//
// Invariants:
// - Events are never updated or deleted.
// - Writers treat journaling as best-effort; a failed append must not block
//   the dialing flow that produced it.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the journal record.
	Type EventType `json:"type" db:"type"`

	// Subject identifiers (optional, depending on the event type).
	LeadID  string `json:"lead_id,omitempty" db:"lead_id"`
	OrderID string `json:"order_id,omitempty" db:"order_id"`
	CallID  string `json:"call_id,omitempty" db:"call_id"`

	// FromStatus and ToStatus carry CRM status codes for transitions.
	FromStatus int64 `json:"from_status,omitempty" db:"from_status"`
	ToStatus   int64 `json:"to_status,omitempty" db:"to_status"`

	// Disposition is the lifecycle verdict (rescheduled, succeeded, failed).
	Disposition string `json:"disposition,omitempty" db:"disposition"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeTransition records one lead status change.
	EventTypeTransition EventType = "lead_transition"

	// EventTypeOrderAction records a manual pause or resume on an order.
	EventTypeOrderAction EventType = "order_action"
)
