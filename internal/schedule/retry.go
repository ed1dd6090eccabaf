package schedule

import (
	"errors"
	"time"
)

// ErrNoIntervals means the caller asked for a retry time without a ladder.
var ErrNoIntervals = errors.New("schedule: retry intervals required")

// IntervalAt returns the wait before attempt n+1 for a ladder that extends
// cyclically: once the configured intervals run out, the ladder repeats from
// its second entry. For [a, b, c] the extended sequence is a, b, c, b, c, b.
// The first entry is reserved for the opening attempt and never recurs.
func IntervalAt(intervals []time.Duration, n int) time.Duration {
	if len(intervals) == 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	if n < len(intervals) {
		return intervals[n]
	}
	if len(intervals) == 1 {
		return intervals[0]
	}
	return intervals[1+(n-len(intervals))%(len(intervals)-1)]
}

// NextCallAt computes when a lead should be dialed next.
//
// With no history the first attempt goes out after intervals[0]. Otherwise
// the wait for attempt n+1 is IntervalAt(intervals, n) counted from the last
// attempt, where n is the number of attempts made so far. A non-nil calendar
// pushes the moment forward to the next open slot within horizon. The client
// offset is applied after the calendar walk, as the final adjustment toward
// the client's own clock.
func NextCallAt(now time.Time, history []time.Time, intervals []time.Duration, cal *Calendar, horizon time.Duration, offset time.Duration) (time.Time, error) {
	if len(intervals) == 0 {
		return time.Time{}, ErrNoIntervals
	}

	var next time.Time
	if len(history) == 0 {
		next = now.Add(intervals[0])
	} else {
		last := history[len(history)-1]
		next = last.Add(IntervalAt(intervals, len(history)))
	}

	if cal != nil {
		open, err := cal.NextOpen(next, horizon)
		if err != nil {
			return time.Time{}, err
		}
		next = open
	}
	return next.Add(offset), nil
}
