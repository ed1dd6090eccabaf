package reporting

import (
	"context"
	"testing"
	"time"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
)

func TestOrderSummaryAggregatesOutcomes(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	finished := func(id string, status leads.StatusCode, talk int, reached bool) calls.Call {
		c := calls.Call{
			ID:          id,
			OrderID:     "o1",
			Direction:   calls.DirectionOutbound,
			Status:      status,
			TalkSeconds: talk,
			StartedAt:   now,
			EndedAt:     now.Add(time.Minute),
		}
		if reached {
			c.AnsweredAt = now.Add(5 * time.Second)
		}
		return c
	}
	repo.Calls = []calls.Call{
		finished("c1", leads.StatusCompleted, 120, true),
		finished("c2", leads.StatusRecallConverted, 90, true),
		finished("c3", leads.StatusNoAnswer, 0, false),
		finished("c4", leads.StatusVoicemail, 0, false),
		finished("c5", leads.StatusHungUp, 10, true),
		{ID: "c6", OrderID: "o1", Direction: calls.DirectionOutbound, StartedAt: now}, // still ringing
		{ID: "c7", OrderID: "o2", Direction: calls.DirectionOutbound, Status: leads.StatusCompleted, StartedAt: now, EndedAt: now},
	}

	svc := NewService(repo)
	out, err := svc.OrderSummary(context.Background(), OrderSummaryRequest{
		OrderID: "o1",
		Range:   TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalAttempts != 6 {
		t.Fatalf("expected 6 attempts, got %d", out.TotalAttempts)
	}
	if out.Reached != 3 {
		t.Fatalf("expected 3 reached, got %d", out.Reached)
	}
	if out.Conversions != 2 {
		t.Fatalf("expected 2 conversions, got %d", out.Conversions)
	}
	if out.NoAnswers != 1 || out.Voicemails != 1 || out.HungUps != 1 {
		t.Fatalf("unexpected outcome counts: %+v", out)
	}
	if out.InFlight != 1 {
		t.Fatalf("expected 1 in-flight attempt, got %d", out.InFlight)
	}
	if out.TotalTalkSeconds != 220 {
		t.Fatalf("expected 220 talk seconds, got %d", out.TotalTalkSeconds)
	}
	if out.ReachRate != 0.5 {
		t.Fatalf("expected reach rate 0.5, got %v", out.ReachRate)
	}
}

func TestOrderSummaryCountsIncoming(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", OrderID: "o1", Direction: calls.DirectionIncoming, Status: leads.StatusCompleted,
			StartedAt: now, AnsweredAt: now, EndedAt: now.Add(time.Minute)},
	}

	svc := NewService(repo)
	out, err := svc.OrderSummary(context.Background(), OrderSummaryRequest{
		OrderID: "o1",
		Range:   TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Incoming != 1 || out.Conversions != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
}

func TestOrderSummaryWindowFilter(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "old", OrderID: "o1", Status: leads.StatusCompleted, StartedAt: now.Add(-2 * time.Hour), EndedAt: now.Add(-2 * time.Hour)},
		{ID: "in", OrderID: "o1", Status: leads.StatusCompleted, StartedAt: now, EndedAt: now},
	}

	svc := NewService(repo)
	out, err := svc.OrderSummary(context.Background(), OrderSummaryRequest{
		OrderID: "o1",
		Range:   TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalAttempts != 1 {
		t.Fatalf("expected the window to drop the old attempt, got %d", out.TotalAttempts)
	}
}

func TestOrderSummaryRejectsBadRequest(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.OrderSummary(context.Background(), OrderSummaryRequest{
		Range: TimeRange{From: now, To: now.Add(time.Hour)},
	}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for missing order, got %v", err)
	}
	if _, err := svc.OrderSummary(context.Background(), OrderSummaryRequest{
		OrderID: "o1",
		Range:   TimeRange{From: now, To: now},
	}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}
