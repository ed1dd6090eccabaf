package dialer

import (
	"sort"
	"time"

	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
)

// Bucket tells why a lead is or is not dialable right now.
type Bucket string

const (
	// BucketDue leads are dialable this cycle, ordered by priority.
	BucketDue Bucket = "due"

	// BucketInProgress leads are checked out by a live dialing session.
	BucketInProgress Bucket = "in_progress"

	// BucketBlockedByOrder holds leads of a paused or finished order.
	BucketBlockedByOrder Bucket = "blocked_by_order"

	// BucketBlockedBySchedule holds leads outside the order's calendar.
	BucketBlockedBySchedule Bucket = "blocked_by_schedule"

	// BucketBlockedByClientTime holds leads whose own local time is outside
	// civil calling hours, regardless of the order's calendar.
	BucketBlockedByClientTime Bucket = "blocked_by_client_time"

	// BucketFuture holds leads whose next-call time has not arrived.
	BucketFuture Bucket = "future"
)

// Civil calling hours applied in the client's own zone when it is known.
// The order calendar handles the company side; this guard protects clients
// who live in a different zone than the campaign.
const (
	clientDayStartHour = 9
	clientDayEndHour   = 21
)

// Queue is a point-in-time dialing queue for one order.
type Queue struct {
	OrderID string
	BuiltAt time.Time

	// Due is sorted dial-first: higher priority, then earlier next-call time.
	Due []leads.Lead

	InProgress          []leads.Lead
	BlockedByOrder      []leads.Lead
	BlockedBySchedule   []leads.Lead
	BlockedByClientTime []leads.Lead
	Future              []leads.Lead
}

// Counts summarizes the queue for console snapshots.
func (q Queue) Counts() map[Bucket]int {
	return map[Bucket]int{
		BucketDue:                 len(q.Due),
		BucketInProgress:          len(q.InProgress),
		BucketBlockedByOrder:      len(q.BlockedByOrder),
		BucketBlockedBySchedule:   len(q.BlockedBySchedule),
		BucketBlockedByClientTime: len(q.BlockedByClientTime),
		BucketFuture:              len(q.Future),
	}
}

// QueueBuilder sorts an order's leads into dialing buckets.
type QueueBuilder struct {
	// nudge is added to now when testing due times, so a lead that would
	// become due moments after this cycle is pulled into it instead of
	// waiting a full poll interval.
	nudge time.Duration
}

func NewQueueBuilder(nudge time.Duration) *QueueBuilder {
	return &QueueBuilder{nudge: nudge}
}

// Build classifies all into buckets as of now. Terminal leads are dropped.
func (b *QueueBuilder) Build(order orders.Order, all []leads.Lead, now time.Time) Queue {
	q := Queue{OrderID: order.ID, BuiltAt: now}
	horizon := now.Add(b.nudge)

	for _, l := range all {
		switch {
		case leads.Terminal(l.Status):
			// Finished one way or another; nothing to queue.
		case l.Staged():
			q.InProgress = append(q.InProgress, l)
		case !order.Dialable():
			q.BlockedByOrder = append(q.BlockedByOrder, l)
		case l.NextCallAt.IsZero():
			// Never scheduled: inbound-created leads handled only within
			// their own call. The queue does not dial them.
			q.Future = append(q.Future, l)
		case l.NextCallAt.After(horizon):
			q.Future = append(q.Future, l)
		case !order.Calendar.IsOpen(now):
			q.BlockedBySchedule = append(q.BlockedBySchedule, l)
		case !clientTimeOK(l, now):
			q.BlockedByClientTime = append(q.BlockedByClientTime, l)
		default:
			q.Due = append(q.Due, l)
		}
	}

	sort.SliceStable(q.Due, func(i, j int) bool {
		if q.Due[i].Priority != q.Due[j].Priority {
			return q.Due[i].Priority > q.Due[j].Priority
		}
		return q.Due[i].NextCallAt.Before(q.Due[j].NextCallAt)
	})
	return q
}

// clientTimeOK checks the civil-hours guard in the lead's own zone. Leads
// without a known zone pass; a bad zone name also passes rather than
// silently freezing the lead forever.
func clientTimeOK(l leads.Lead, now time.Time) bool {
	if l.TimeZone == "" {
		return true
	}
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return true
	}
	h := now.In(loc).Hour()
	return h >= clientDayStartHour && h < clientDayEndHour
}
