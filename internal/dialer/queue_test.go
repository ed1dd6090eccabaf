package dialer

import (
	"testing"
	"time"

	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
	"dialer-core/internal/schedule"
)

func openCalendar() schedule.Calendar {
	all := []schedule.Window{{StartMinute: 0, EndMinute: 24 * 60}}
	week := schedule.WorkWeek{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		week[d] = all
	}
	return schedule.Calendar{Week: week, Location: time.UTC}
}

func activeOrder() orders.Order {
	return orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()}
}

func TestBuildBuckets(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // Monday noon
	b := NewQueueBuilder(7 * time.Second)

	all := []leads.Lead{
		{ID: "due", NextCallAt: now.Add(-time.Minute)},
		{ID: "staged", NextCallAt: now.Add(-time.Minute), StagedAt: now.Add(-5 * time.Second)},
		{ID: "future", NextCallAt: now.Add(time.Hour)},
		{ID: "done", Status: leads.StatusCompleted, NextCallAt: now.Add(-time.Minute)},
	}
	q := b.Build(activeOrder(), all, now)

	if len(q.Due) != 1 || q.Due[0].ID != "due" {
		t.Fatalf("Due = %v, want [due]", ids(q.Due))
	}
	if len(q.InProgress) != 1 || q.InProgress[0].ID != "staged" {
		t.Fatalf("InProgress = %v, want [staged]", ids(q.InProgress))
	}
	if len(q.Future) != 1 || q.Future[0].ID != "future" {
		t.Fatalf("Future = %v, want [future]", ids(q.Future))
	}
	total := 0
	for _, n := range q.Counts() {
		total += n
	}
	if total != 3 {
		t.Fatalf("counted %d leads, want 3 (terminal lead dropped)", total)
	}
}

func TestBuildNudgePullsAlmostDue(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	b := NewQueueBuilder(7 * time.Second)

	all := []leads.Lead{
		{ID: "soon", NextCallAt: now.Add(5 * time.Second)},
		{ID: "later", NextCallAt: now.Add(8 * time.Second)},
	}
	q := b.Build(activeOrder(), all, now)

	if len(q.Due) != 1 || q.Due[0].ID != "soon" {
		t.Fatalf("Due = %v, want [soon]", ids(q.Due))
	}
	if len(q.Future) != 1 || q.Future[0].ID != "later" {
		t.Fatalf("Future = %v, want [later]", ids(q.Future))
	}
}

func TestBuildPausedOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	order := activeOrder()
	order.Status = orders.StatusPaused

	q := NewQueueBuilder(0).Build(order, []leads.Lead{{ID: "l1", NextCallAt: now.Add(-time.Minute)}}, now)
	if len(q.BlockedByOrder) != 1 {
		t.Fatalf("BlockedByOrder = %v, want [l1]", ids(q.BlockedByOrder))
	}
}

func TestBuildScheduleBlock(t *testing.T) {
	order := activeOrder()
	order.Calendar = schedule.Calendar{
		Week: schedule.WorkWeek{
			time.Monday: {{StartMinute: 9 * 60, EndMinute: 18 * 60}},
		},
		Location: time.UTC,
	}
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC) // Monday evening

	q := NewQueueBuilder(0).Build(order, []leads.Lead{{ID: "l1", NextCallAt: now.Add(-time.Minute)}}, now)
	if len(q.BlockedBySchedule) != 1 {
		t.Fatalf("BlockedBySchedule = %v, want [l1]", ids(q.BlockedBySchedule))
	}
}

func TestBuildClientTimeGuard(t *testing.T) {
	// Noon UTC is 04:00 in Los Angeles: the order is open but the client
	// is asleep.
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	all := []leads.Lead{
		{ID: "west", TimeZone: "America/Los_Angeles", NextCallAt: now.Add(-time.Minute)},
		{ID: "local", NextCallAt: now.Add(-time.Minute)},
		{ID: "badzone", TimeZone: "Not/AZone", NextCallAt: now.Add(-time.Minute)},
	}

	q := NewQueueBuilder(0).Build(activeOrder(), all, now)
	if len(q.BlockedByClientTime) != 1 || q.BlockedByClientTime[0].ID != "west" {
		t.Fatalf("BlockedByClientTime = %v, want [west]", ids(q.BlockedByClientTime))
	}
	if len(q.Due) != 2 {
		t.Fatalf("Due = %v, want [local badzone]", ids(q.Due))
	}
}

func TestBuildDueOrdering(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	all := []leads.Lead{
		{ID: "old-low", Priority: 0, NextCallAt: now.Add(-time.Hour)},
		{ID: "recall", Priority: 15, NextCallAt: now.Add(-time.Minute)},
		{ID: "fresh", Priority: 6, NextCallAt: now.Add(-30 * time.Minute)},
		{ID: "fresh-earlier", Priority: 6, NextCallAt: now.Add(-40 * time.Minute)},
	}

	q := NewQueueBuilder(0).Build(activeOrder(), all, now)
	want := []string{"recall", "fresh-earlier", "fresh", "old-low"}
	got := ids(q.Due)
	if len(got) != len(want) {
		t.Fatalf("Due = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Due = %v, want %v", got, want)
		}
	}
}

func ids(ls []leads.Lead) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}
