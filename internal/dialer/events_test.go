package dialer

import (
	"context"
	"testing"
	"time"

	"dialer-core/internal/agents"
	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
	"dialer-core/internal/telephony"
)

func (f *fixture) seedCall(t *testing.T, c calls.Call) calls.Call {
	t.Helper()
	if c.StartedAt.IsZero() {
		c.StartedAt = f.clock.Now().Add(-time.Minute)
	}
	if err := f.calls.Create(context.Background(), c); err != nil {
		t.Fatalf("seed call: %v", err)
	}
	return c
}

func TestFinishEventReschedulesLead(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: order.ID, NextCallAt: f.clock.Now().Add(-time.Minute)})
	if err := f.leads.Stage(context.Background(), "l1", "c1", f.clock.Now()); err != nil {
		t.Fatalf("stage: %v", err)
	}
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1", TrunkID: "t1", Direction: calls.DirectionOutbound})

	at := f.clock.Now()
	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "s1",
		StatusCode: int64(leads.StatusPostponed),
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	lead, err := f.leads.Get(context.Background(), "l1")
	if err != nil {
		t.Fatalf("Get lead: %v", err)
	}
	if lead.Status != leads.StatusPostponed {
		t.Fatalf("Status = %d, want postponed", lead.Status)
	}
	if lead.Staged() {
		t.Fatal("lead still staged after finish")
	}
	if want := at.Add(2 * time.Hour); !lead.NextCallAt.Equal(want) {
		t.Fatalf("NextCallAt = %v, want %v", lead.NextCallAt, want)
	}

	call, err := f.calls.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get call: %v", err)
	}
	if !call.Finished() {
		t.Fatal("call not finalized")
	}
}

func TestFinishEventDuplicateIgnored(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	f.seedCall(t, calls.Call{
		ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1",
		Status: leads.StatusNoAnswer, EndedAt: f.clock.Now().Add(-time.Minute),
	})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "s1",
		StatusCode: int64(leads.StatusCompleted),
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	lead, _ := f.leads.Get(context.Background(), "l1")
	if lead.AttemptCount != 0 {
		t.Fatalf("duplicate finish touched the lead: attempts = %d", lead.AttemptCount)
	}
}

func TestFinishEventUnknownSessionAcked(t *testing.T) {
	f := newFixture(t)
	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "nope",
		StatusCode: int64(leads.StatusCompleted),
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("unknown session should ack, got %v", err)
	}
}

func TestFinishEventConvertsReachedPriorityRecall(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: order.ID, Status: leads.StatusPriorityRecall})
	f.seedCall(t, calls.Call{
		ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1", TrunkID: "t1",
		AnsweredAt: f.clock.Now().Add(-30 * time.Second),
	})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:   "s1",
		StatusCode:  int64(leads.StatusCompleted),
		TalkSeconds: 25,
		OccurredAt:  f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	lead, _ := f.leads.Get(context.Background(), "l1")
	if lead.Status != leads.StatusRecallConverted {
		t.Fatalf("Status = %d, want recall converted", lead.Status)
	}
	if len(f.picker.releases) != 1 || f.picker.releases[0] != "t1" {
		t.Fatalf("trunk releases = %v, want [t1]", f.picker.releases)
	}
}

func TestFinishEventRequalifiesDisqualified(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedOrder(t, orders.Order{ID: "requal", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1", Phone: "+15550010", TimeZone: "Europe/Berlin"})
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1"})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "s1",
		StatusCode: int64(leads.StatusDisqualified),
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	linkedList, err := f.leads.ListForOrder(context.Background(), "requal")
	if err != nil {
		t.Fatalf("ListForOrder: %v", err)
	}
	if len(linkedList) != 1 {
		t.Fatalf("requalification order has %d leads, want 1", len(linkedList))
	}
	linked := linkedList[0]
	if linked.LinkedFromID != "l1" || linked.Phone != "+15550010" || linked.TimeZone != "Europe/Berlin" {
		t.Fatalf("linked lead = %+v, want copy of l1", linked)
	}
}

func TestFinishEventKeepsRejectionComment(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1"})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "s1",
		StatusCode: int64(leads.StatusRefused),
		Comment:    "asked never to call again",
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	lead, _ := f.leads.Get(context.Background(), "l1")
	if lead.Comment != "asked never to call again" {
		t.Fatalf("Comment = %q, want the console note", lead.Comment)
	}
}

func TestFinishEventFinalAgreementConfirms(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1"})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:    "s1",
		StatusCode:   int64(leads.StatusAgreedPending),
		FinalAttempt: true,
		OccurredAt:   f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	lead, _ := f.leads.Get(context.Background(), "l1")
	if !lead.Confirmed {
		t.Fatal("final-attempt agreement must confirm the lead")
	}
}

func TestLegEventOperatorConnectMarksBusy(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeDefault, MissedStreak: 2})
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1", AgentID: "a1"})

	err := f.svc.HandleLegEvent(context.Background(), telephony.LegEvent{
		SessionID:  "s1",
		LegID:      "s1-operator",
		Role:       telephony.LegRoleOperator,
		Connected:  true,
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleLegEvent: %v", err)
	}

	if !f.presence.busy["a1"] {
		t.Fatal("agent not marked busy on operator connect")
	}
	a, _ := f.agents.Get(context.Background(), "a1")
	if a.MissedStreak != 0 {
		t.Fatalf("MissedStreak = %d, want 0 after taking a call", a.MissedStreak)
	}
}

func TestLegEventClientConnectMarksAnswered(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, calls.Call{ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1"})

	at := f.clock.Now()
	err := f.svc.HandleLegEvent(context.Background(), telephony.LegEvent{
		SessionID:  "s1",
		LegID:      "s1-client",
		Role:       telephony.LegRoleClient,
		Connected:  true,
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("HandleLegEvent: %v", err)
	}

	call, _ := f.calls.Get(context.Background(), "c1")
	if !call.AnsweredAt.Equal(at) {
		t.Fatalf("AnsweredAt = %v, want %v", call.AnsweredAt, at)
	}
}

func TestFinishEventRecordsAgentMiss(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModeDefault})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	// Client leg came up but the agent never went busy: they did not pick
	// up their bridge leg.
	f.seedCall(t, calls.Call{
		ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1", AgentID: "a1",
		AnsweredAt: f.clock.Now().Add(-20 * time.Second),
	})

	err := f.svc.HandleFinishEvent(context.Background(), telephony.FinishEvent{
		SessionID:  "s1",
		StatusCode: int64(leads.StatusNoAnswer),
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleFinishEvent: %v", err)
	}

	a, _ := f.agents.Get(context.Background(), "a1")
	if a.MissedStreak != 1 {
		t.Fatalf("MissedStreak = %d, want 1", a.MissedStreak)
	}
}

func TestLegEventDelegatesPredictiveCall(t *testing.T) {
	f := newFixture(t, "a1")
	f.agents.Put(agents.Agent{ID: "a1", Extension: "101", Mode: agents.PhoneModePredictive})
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Mode: orders.ModePredictive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	f.seedCall(t, calls.Call{
		ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1",
		Direction: calls.DirectionOutbound,
	})

	err := f.svc.HandleLegEvent(context.Background(), telephony.LegEvent{
		SessionID:  "s1",
		LegID:      "s1-client",
		Role:       telephony.LegRoleClient,
		Connected:  true,
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleLegEvent: %v", err)
	}

	call, _ := f.calls.Get(context.Background(), "c1")
	if call.AgentID != "a1" {
		t.Fatalf("AgentID = %q, want a1", call.AgentID)
	}
	if !f.presence.holds["a1"] {
		t.Fatal("expected a delegation hold on the agent")
	}
}

func TestLegEventAbandonsPredictiveCallWithoutAgents(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, orders.Order{ID: "o1", Status: orders.StatusActive, Calendar: openCalendar()})
	f.seedLead(t, leads.Lead{ID: "l1", OrderID: "o1"})
	f.seedCall(t, calls.Call{
		ID: "c1", SessionID: "s1", OrderID: "o1", LeadID: "l1",
		Direction: calls.DirectionOutbound, TrunkID: "t1",
	})

	err := f.svc.HandleLegEvent(context.Background(), telephony.LegEvent{
		SessionID:  "s1",
		LegID:      "s1-client",
		Role:       telephony.LegRoleClient,
		Connected:  true,
		OccurredAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("HandleLegEvent: %v", err)
	}

	call, _ := f.calls.Get(context.Background(), "c1")
	if !call.Finished() || call.Status != leads.StatusHungUp {
		t.Fatalf("call not closed as hang-up: status=%d finished=%v", call.Status, call.Finished())
	}
	lead, _ := f.leads.Get(context.Background(), "l1")
	if lead.Status != leads.StatusHungUp {
		t.Fatalf("lead status = %d, want hung up", lead.Status)
	}
	if len(f.picker.releases) != 1 || f.picker.releases[0] != "t1" {
		t.Fatalf("trunk releases = %v, want [t1]", f.picker.releases)
	}
}
