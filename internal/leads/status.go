package leads

// StatusCode is the CRM disposition code attached to a lead after each
// attempt. The values are fixed by the upstream CRM and travel over the wire
// unchanged; never renumber them.
type StatusCode int64

const (
	// StatusNone is a lead that was never dialed.
	StatusNone StatusCode = 0

	// StatusCompleted marks a reached, finished conversation.
	StatusCompleted StatusCode = 55555555555

	// StatusRecallConverted is what StatusPriorityRecall becomes once the
	// recall leg actually connects.
	StatusRecallConverted StatusCode = 66666666666

	// StatusCarrierMissed is set by the switch when the carrier dropped the
	// attempt before any leg was established.
	StatusCarrierMissed StatusCode = 77777777777

	// StatusPriorityRecall asks for an immediate high-priority recall.
	StatusPriorityRecall StatusCode = 88888888888

	// StatusClientRecall is a recall at the client's requested time.
	StatusClientRecall StatusCode = 22222222222

	// StatusAgreedPending marks a client who agreed on the call but still
	// owes a confirming conversation. Terminal for the queue; whether the
	// agreement counts as confirmed depends on the attempt being the final
	// one of the campaign.
	StatusAgreedPending StatusCode = 44444444444

	// StatusVoicemail means the attempt hit an answering machine.
	StatusVoicemail StatusCode = 33333333333

	// StatusNoAnswer means ringing timed out with no pickup.
	StatusNoAnswer StatusCode = 50000063670

	// StatusWrongNumber and StatusRefused are terminal failures.
	StatusWrongNumber StatusCode = 50000063671
	StatusRefused     StatusCode = 50000063672

	// StatusHungUp means the client picked up and dropped within seconds.
	StatusHungUp StatusCode = 50000063673

	// StatusScheduledRecall is an agent-scheduled recall.
	StatusScheduledRecall StatusCode = 50000063675

	// StatusCallLimit is set when a lead exhausts its attempt allowance.
	StatusCallLimit StatusCode = 50000063676

	// StatusCallbackRequested means the client explicitly asked to be called
	// back; the matcher boosts agents who held such conversations.
	StatusCallbackRequested StatusCode = 50000063681

	// StatusOperatorRecall is a recall initiated from the agent console.
	StatusOperatorRecall StatusCode = 50000063682

	// StatusDisqualified removes the lead but spawns a re-qualification link.
	StatusDisqualified StatusCode = 50000063690

	// StatusPostponed parks the lead for a fixed cool-down.
	StatusPostponed StatusCode = 50000063700
)

// Class groups status codes by what the queue builder should do with them.
type Class string

const (
	// ClassInProgress covers leads currently staged or on a call.
	ClassInProgress Class = "in_progress"

	// ClassSuccess is terminal; the lead reached its goal.
	ClassSuccess Class = "success"

	// ClassDark is terminal like success, but the agreement is only treated
	// as fully confirmed when it happened on the campaign's final attempt.
	ClassDark Class = "dark"

	// ClassFailed is terminal with no follow-up.
	ClassFailed Class = "failed"

	// ClassFailedStraight is terminal but spawns a re-qualification link
	// into a follow-up order.
	ClassFailedStraight Class = "failed_straight"

	// ClassRetryable stays in the retry ladder.
	ClassRetryable Class = "retryable"
)

// StatusMap assigns queue classes to status codes. The CRM owns new
// dispositions, so deployments override the default mapping instead of
// waiting for a code change.
type StatusMap map[StatusCode]Class

// DefaultStatusMap is the mapping the upstream CRM ships with.
func DefaultStatusMap() StatusMap {
	return StatusMap{
		StatusCompleted:       ClassSuccess,
		StatusRecallConverted: ClassSuccess,
		StatusAgreedPending:   ClassDark,
		StatusWrongNumber:     ClassFailed,
		StatusRefused:         ClassFailed,
		StatusCallLimit:       ClassFailed,
		StatusDisqualified:    ClassFailedStraight,
	}
}

// Classify resolves the class of s. Unknown codes are treated as retryable
// so a new CRM disposition never silently kills a lead.
func (m StatusMap) Classify(s StatusCode) Class {
	if c, ok := m[s]; ok {
		return c
	}
	return ClassRetryable
}

// Classify maps a status code through the default mapping.
func Classify(s StatusCode) Class {
	return DefaultStatusMap().Classify(s)
}

// Terminal reports whether a lead with this status leaves the queue for good.
func Terminal(s StatusCode) bool {
	switch Classify(s) {
	case ClassSuccess, ClassDark, ClassFailed, ClassFailedStraight:
		return true
	default:
		return false
	}
}

// CountsTowardLadder reports whether an attempt ending in s consumes a rung
// of the retry ladder. Recall-style and in-flight codes do not: the client
// or an agent chose the next call time themselves.
func CountsTowardLadder(s StatusCode) bool {
	switch s {
	case StatusCarrierMissed, StatusClientRecall, StatusPriorityRecall,
		StatusCompleted, StatusOperatorRecall, StatusScheduledRecall,
		StatusCallbackRequested:
		return false
	default:
		return true
	}
}

// ResetsLadder reports whether s rewinds the ladder position, granting the
// lead a fresh pass over the retry intervals.
func ResetsLadder(s StatusCode) bool {
	switch s {
	case StatusNoAnswer, StatusVoicemail:
		return true
	default:
		return false
	}
}

// GoodAttempt reports whether the attempt actually reached a human. Used for
// priority decay: leads that keep reaching someone sink in priority.
func GoodAttempt(s StatusCode) bool {
	switch s {
	case StatusCompleted, StatusRecallConverted, StatusAgreedPending,
		StatusHungUp, StatusClientRecall, StatusScheduledRecall,
		StatusCallbackRequested:
		return true
	default:
		return false
	}
}
