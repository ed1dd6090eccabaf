package dialer

import (
	"context"
	"testing"
	"time"

	"dialer-core/internal/agents"
	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
	"dialer-core/internal/schedule"
	"dialer-core/internal/telephony"
	"dialer-core/internal/trunks"
)

func incomingEvent(from string) telephony.IncomingEvent {
	return telephony.IncomingEvent{SwitchCallID: "sw-1", From: from, To: "+15559999"}
}

func TestIncomingUnknownNumber(t *testing.T) {
	f := newFixture(t)
	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckUnknownNumber {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckUnknownNumber)
	}
}

func TestIncomingRejectedTerminalLead(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234", Status: leads.StatusRefused})

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckRejected {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckRejected)
	}
}

func TestIncomingLeadInProgress(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})
	if err := f.leads.Stage(context.Background(), "l1", "live", f.clock.Now()); err != nil {
		t.Fatalf("stage: %v", err)
	}

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckLeadInProgress {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckLeadInProgress)
	}
}

func TestIncomingOrderPaused(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusPaused, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckOrderPaused {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckOrderPaused)
	}
}

func TestIncomingOutsideSchedule(t *testing.T) {
	f := newFixture(t)
	cal := schedule.Calendar{
		Week: schedule.WorkWeek{
			time.Monday: {{StartMinute: 9 * 60, EndMinute: 11 * 60}},
		},
		Location: time.UTC,
	}
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: cal})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})

	// Fixture clock sits at Monday noon, one hour past the window.
	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckOutsideSchedule {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckOutsideSchedule)
	}
}

func TestIncomingNoAgents(t *testing.T) {
	f := newFixture(t) // nobody online
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckNoAgents {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckNoAgents)
	}
}

func TestIncomingAccepted(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckAccepted {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckAccepted)
	}
	if d.AgentID != "a1" || d.AgentExtension != "101" {
		t.Fatalf("routed to %s/%s, want a1/101", d.AgentID, d.AgentExtension)
	}
	if d.CallID == "" {
		t.Fatal("no call record id returned")
	}

	call, err := f.calls.GetBySession(context.Background(), "sw-1")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if call.Direction != "incoming" || call.LeadID != "l1" {
		t.Fatalf("call = %+v, want incoming call for l1", call)
	}
	lead, _ := f.leads.Get(context.Background(), "l1")
	if !lead.Staged() {
		t.Fatal("lead not staged for the incoming conversation")
	}
	if !f.presence.holds["a1"] {
		t.Fatal("agent not reserved")
	}
}

func TestIncomingSelfCallRejected(t *testing.T) {
	f := newFixture(t)
	ev := telephony.IncomingEvent{SwitchCallID: "sw-1", From: "+15559999", To: "+15559999"}
	if d := f.svc.HandleIncoming(context.Background(), ev); d.Ack != AckRejected {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckRejected)
	}
}

func TestIncomingBlockedCallerRejected(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})
	f.blocked.numbers["+15551234"] = true

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckRejected {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckRejected)
	}
	if len(f.tasks.dialTasks(t)) != 0 || f.presence.holds["a1"] {
		t.Fatal("blocked caller still reached routing")
	}
}

func TestIncomingTrunkSaturated(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})
	f.picker.addresses = map[string]trunks.Trunk{"+15559999": {ID: "t9", Channels: 2}}
	f.picker.saturated = map[string]bool{"t9": true}

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234"))
	if d.Ack != AckNoAgents {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckNoAgents)
	}
}

func TestIncomingUnknownCallerCreatesSelectionLead(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{
		ID: "linked", Status: orders.StatusActive, Calendar: openCalendar(),
		UnknownLead: orders.UnknownLeadCreateSelection,
	})
	f.picker.addresses = map[string]trunks.Trunk{"+15559999": {ID: "t9", OrderID: "linked", Channels: 10}}

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15557777"))
	if d.Ack != AckAccepted {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckAccepted)
	}

	created, err := f.leads.FindByPhone(context.Background(), "+15557777")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if created.OrderID != "linked" {
		t.Fatalf("lead created in order %q, want linked", created.OrderID)
	}
	if created.NextCallAt.IsZero() {
		t.Fatal("selection lead must join the dialing queue")
	}
	if !created.Staged() {
		t.Fatal("created lead not staged for the live conversation")
	}
}

func TestIncomingUnknownCallerStraightLeadStaysOutOfQueue(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{
		ID: "linked", Status: orders.StatusActive, Calendar: openCalendar(),
		UnknownLead: orders.UnknownLeadCreateStraight,
	})
	f.picker.addresses = map[string]trunks.Trunk{"+15559999": {ID: "t9", OrderID: "linked", Channels: 10}}

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15557777"))
	if d.Ack != AckAccepted {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckAccepted)
	}

	created, err := f.leads.FindByPhone(context.Background(), "+15557777")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if !created.NextCallAt.IsZero() {
		t.Fatalf("straight lead scheduled for %v, must stay unscheduled", created.NextCallAt)
	}
}

func TestIncomingUnknownCallerRejectingOrder(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "linked", Status: orders.StatusActive, Calendar: openCalendar()})
	f.picker.addresses = map[string]trunks.Trunk{"+15559999": {ID: "t9", OrderID: "linked", Channels: 10}}

	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15557777"))
	if d.Ack != AckUnknownNumber {
		t.Fatalf("Ack = %d, want %d", d.Ack, AckUnknownNumber)
	}
	if _, err := f.leads.FindByPhone(context.Background(), "+15557777"); err == nil {
		t.Fatal("rejecting order still created a lead")
	}
}

func TestIncomingAgentAlreadyHeld(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeIncomingOnly})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15551234"})
	f.seedLead(t, leads.Lead{ID: "l2", OrderID: "o1", Phone: "+15551235"})

	if d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551234")); d.Ack != AckAccepted {
		t.Fatalf("first call Ack = %d, want %d", d.Ack, AckAccepted)
	}
	d := f.svc.HandleIncoming(context.Background(), incomingEvent("+15551235"))
	if d.Ack != AckHeld {
		t.Fatalf("second call Ack = %d, want %d", d.Ack, AckHeld)
	}
}
