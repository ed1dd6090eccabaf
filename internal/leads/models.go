package leads

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("leads: not found")
	ErrInvalidArgument = errors.New("leads: invalid argument")

	// ErrAlreadyStaged is returned when a stage attempt loses the race for a
	// lead another worker already pulled.
	ErrAlreadyStaged = errors.New("leads: already staged")
)

// Lead is one phone number inside an order's dialing queue.
type Lead struct {
	ID      string
	OrderID string

	// Phone is the dial string; CountryCode is its parsed prefix, used for
	// trunk affinity.
	Phone       string
	CountryCode string

	// TimeZone is the client's IANA zone when known; the queue builder uses
	// it to keep calls inside civil hours. Empty means no client-time guard.
	TimeZone string

	Status StatusCode

	// Priority orders leads inside the due bucket; higher dials first.
	Priority int

	// AttemptCount is total dial attempts; GoodAttemptCount counts attempts
	// that reached a human.
	AttemptCount     int
	GoodAttemptCount int

	// CountedAttempts is the subset of attempts that consume a rung of the
	// retry ladder. Recalls and carrier drops stay out, so a lead the client
	// keeps rescheduling is not pushed over the cap by its own recalls.
	CountedAttempts int

	// ResetCount is how many times the retry ladder was rewound.
	ResetCount int

	// WrapOffset is the ladder position where the current pass started, so an
	// extended ladder keeps cycling instead of running off the end.
	WrapOffset int

	// MissedStreak counts consecutive carrier-side drops.
	MissedStreak int

	// HungUpCount counts attempts the client dropped within seconds.
	HungUpCount int

	// Confirmed is set when the campaign goal is fully confirmed: either a
	// completed conversation or an agreement given on the final attempt.
	Confirmed bool

	// Comment carries the agent's note from the closing attempt. Rejecting
	// dispositions always store one so the CRM side sees why.
	Comment string

	// UTCOffsetSeconds shifts every scheduled call time toward the client's
	// own clock. Zero means the campaign zone applies unchanged.
	UTCOffsetSeconds int

	NextCallAt time.Time
	LastCallAt time.Time

	// StagedAt and SessionID are set while the lead is checked out by a
	// worker. A stale StagedAt means the worker died mid-flight.
	StagedAt  time.Time
	SessionID string

	// LinkedFromID references the lead this one was re-qualified from.
	LinkedFromID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Staged reports whether the lead is currently checked out.
func (l Lead) Staged() bool { return !l.StagedAt.IsZero() }

// Class returns the queue class of the lead's current status.
func (l Lead) Class() Class {
	if l.Staged() {
		return ClassInProgress
	}
	return Classify(l.Status)
}

// Broken reports a lead whose client dropped the call twice or more; such a
// number is treated as hostile and leaves the ladder.
func (l Lead) Broken() bool { return l.HungUpCount >= 2 }

// ClientOffset is UTCOffsetSeconds as a duration.
func (l Lead) ClientOffset() time.Duration {
	return time.Duration(l.UTCOffsetSeconds) * time.Second
}

// BasePriority is the decay ladder: fresh leads dial first, leads that were
// reached repeatedly sink toward zero.
func BasePriority(goodAttempts int) int {
	switch goodAttempts {
	case 0:
		return 6
	case 1:
		return 4
	case 2:
		return 3
	case 3:
		return 2
	default:
		return 0
	}
}
