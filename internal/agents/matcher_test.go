package agents

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
)

type stubPresence struct {
	online []string
	busy   map[string]bool
	held   map[string]bool
}

func (s *stubPresence) Online(ctx context.Context) ([]string, error) { return s.online, nil }

func (s *stubPresence) Busy(ctx context.Context, id string) (bool, error) {
	return s.busy[id] || s.held[id], nil
}

func (s *stubPresence) Hold(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if s.held == nil {
		s.held = map[string]bool{}
	}
	if s.held[id] {
		return false, nil
	}
	s.held[id] = true
	return true, nil
}

func (s *stubPresence) ReleaseHold(ctx context.Context, id string) error {
	delete(s.held, id)
	return nil
}

func (s *stubPresence) SetBusy(ctx context.Context, id string, ttl time.Duration) error {
	if s.busy == nil {
		s.busy = map[string]bool{}
	}
	s.busy[id] = true
	return nil
}

func (s *stubPresence) ClearBusy(ctx context.Context, id string) error {
	delete(s.busy, id)
	return nil
}

type stubHistory struct {
	byLead map[string][]calls.Call
	reads  int
}

func (s *stubHistory) ListForLead(ctx context.Context, leadID string) ([]calls.Call, error) {
	s.reads++
	return s.byLead[leadID], nil
}

var matcherNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestMatcher(t *testing.T, roster []Agent, presence *stubPresence, history *stubHistory) *Matcher {
	t.Helper()
	repo := NewMemoryRepo()
	for _, a := range roster {
		repo.Put(a)
	}
	if history == nil {
		history = &stubHistory{}
	}
	return NewMatcher(repo, presence, history, MatcherConfig{
		MissedStreakLimit: 3,
		RNG:               rand.New(rand.NewSource(1)),
	})
}

func leadConversation(agentID string, status leads.StatusCode, talkSeconds int) calls.Call {
	return calls.Call{
		ID: "c-" + agentID, SessionID: "s-" + agentID,
		LeadID: "lead", AgentID: agentID,
		Status: status, TalkSeconds: talkSeconds,
		EndedAt: matcherNow.Add(-time.Hour),
	}
}

func outgoing() Query { return Query{Type: CallTypeOutgoing} }

func TestMatcher_Available_FiltersModeBusyAndStreak(t *testing.T) {
	roster := []Agent{
		{ID: "a", Mode: PhoneModeDefault},
		{ID: "b", Mode: PhoneModeIncomingOnly},
		{ID: "c", Mode: PhoneModeDefault},
		{ID: "d", Mode: PhoneModeDefault, MissedStreak: 3},
	}
	presence := &stubPresence{
		online: []string{"a", "b", "c", "d", "ghost"},
		busy:   map[string]bool{"c": true},
	}
	m := newTestMatcher(t, roster, presence, nil)

	got, err := m.Available(context.Background(), outgoing())
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only agent a, got %+v", got)
	}
}

func TestMatcher_Available_SeparatesTrainingSeats(t *testing.T) {
	roster := []Agent{
		{ID: "live", Mode: PhoneModeDefault},
		{ID: "trainee", Mode: PhoneModeDefault, Training: true},
	}
	presence := &stubPresence{online: []string{"live", "trainee"}}
	m := newTestMatcher(t, roster, presence, nil)

	got, err := m.Available(context.Background(), outgoing())
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 1 || got[0].ID != "live" {
		t.Fatalf("live traffic reached a training seat: %+v", got)
	}

	got, err = m.Available(context.Background(), Query{Type: CallTypeOutgoing, Simulator: true})
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 1 || got[0].ID != "trainee" {
		t.Fatalf("simulator request matched %+v, want the trainee", got)
	}
}

func TestMatcher_Available_HonorsOrderAssignment(t *testing.T) {
	roster := []Agent{
		{ID: "direct", Mode: PhoneModeDefault},
		{ID: "grouped", Mode: PhoneModeDefault, GroupIDs: []string{"night-shift"}},
		{ID: "outsider", Mode: PhoneModeDefault},
	}
	presence := &stubPresence{online: []string{"direct", "grouped", "outsider"}}
	m := newTestMatcher(t, roster, presence, nil)

	q := Query{Type: CallTypeOutgoing, AgentIDs: []string{"direct"}, AgentGroups: []string{"night-shift"}}
	got, err := m.Available(context.Background(), q)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the assigned pair, got %+v", got)
	}
	for _, a := range got {
		if a.ID == "outsider" {
			t.Fatal("unassigned agent admitted to a restricted order")
		}
	}

	// No assignment means no restriction.
	got, err = m.Available(context.Background(), outgoing())
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("open order should admit everyone, got %+v", got)
	}
}

func TestMatcher_Next_NoAgents(t *testing.T) {
	m := newTestMatcher(t, nil, &stubPresence{}, nil)
	_, err := m.Next(context.Background(), "lead", outgoing())
	if !errors.Is(err, ErrNoAgents) {
		t.Fatalf("expected ErrNoAgents, got %v", err)
	}
}

func TestMatcher_Next_SingleCandidateSkipsHistory(t *testing.T) {
	history := &stubHistory{}
	presence := &stubPresence{online: []string{"only"}}
	m := newTestMatcher(t, []Agent{{ID: "only", Mode: PhoneModeDefault}}, presence, history)

	got, err := m.Next(context.Background(), "lead", outgoing())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.ID != "only" {
		t.Fatalf("expected the lone candidate, got %q", got.ID)
	}
	if history.reads != 0 {
		t.Fatalf("lone candidate still read the call history %d times", history.reads)
	}
}

func TestMatcher_Next_PrefersAgentWhoTalkedToLead(t *testing.T) {
	roster := []Agent{
		{ID: "stranger", Mode: PhoneModeDefault},
		{ID: "familiar", Mode: PhoneModeDefault},
	}
	presence := &stubPresence{online: []string{"stranger", "familiar"}}
	history := &stubHistory{byLead: map[string][]calls.Call{
		"lead": {leadConversation("familiar", leads.StatusNoAnswer, 0)},
	}}
	m := newTestMatcher(t, roster, presence, history)

	got, err := m.Next(context.Background(), "lead", outgoing())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.ID != "familiar" {
		t.Fatalf("expected the agent with history on this lead, got %q", got.ID)
	}
}

func TestMatcher_Next_CallbackConversationOutweighsPlainOnes(t *testing.T) {
	roster := []Agent{
		{ID: "plain", Mode: PhoneModeDefault},
		{ID: "callback", Mode: PhoneModeDefault},
	}
	presence := &stubPresence{online: []string{"plain", "callback"}}
	history := &stubHistory{byLead: map[string][]calls.Call{
		"lead": {
			// Several plain conversations still lose to one callback request.
			leadConversation("plain", leads.StatusNoAnswer, 0),
			{ID: "c2", SessionID: "s2", LeadID: "lead", AgentID: "plain",
				Status: leads.StatusVoicemail, EndedAt: matcherNow.Add(-2 * time.Hour)},
			leadConversation("callback", leads.StatusCallbackRequested, 0),
		},
	}}
	m := newTestMatcher(t, roster, presence, history)

	got, err := m.Next(context.Background(), "lead", outgoing())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.ID != "callback" {
		t.Fatalf("expected the callback agent, got %q", got.ID)
	}
}

func TestMatcher_Next_TalkTimeWeighsWholeMinutes(t *testing.T) {
	roster := []Agent{
		{ID: "short", Mode: PhoneModeDefault},
		{ID: "long", Mode: PhoneModeDefault},
	}
	presence := &stubPresence{online: []string{"short", "long"}}
	history := &stubHistory{byLead: map[string][]calls.Call{
		"lead": {
			// 59 seconds rounds down to zero whole minutes.
			leadConversation("short", leads.StatusHungUp, 59),
			leadConversation("long", leads.StatusHungUp, 61),
		},
	}}
	m := newTestMatcher(t, roster, presence, history)

	got, err := m.Next(context.Background(), "lead", outgoing())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.ID != "long" {
		t.Fatalf("expected the longer conversation to win, got %q", got.ID)
	}
}

func TestMatcher_Next_TieBreaksAreSeeded(t *testing.T) {
	roster := []Agent{
		{ID: "x", Mode: PhoneModeDefault},
		{ID: "y", Mode: PhoneModeDefault},
	}

	pick := func() string {
		m := newTestMatcher(t, roster, &stubPresence{online: []string{"x", "y"}}, nil)
		a, err := m.Next(context.Background(), "lead", outgoing())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		return a.ID
	}

	first := pick()
	for i := 0; i < 5; i++ {
		if pick() != first {
			t.Fatal("same seed must give the same tie-break")
		}
	}
}

func TestMatcher_Reserve_IsExclusive(t *testing.T) {
	presence := &stubPresence{online: []string{"a"}}
	m := newTestMatcher(t, []Agent{{ID: "a", Mode: PhoneModeDefault}}, presence, nil)

	ok, err := m.Reserve(context.Background(), "a", 15*time.Second)
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	ok, err = m.Reserve(context.Background(), "a", 15*time.Second)
	if err != nil || ok {
		t.Fatalf("second reserve must fail: ok=%v err=%v", ok, err)
	}

	got, err := m.Available(context.Background(), outgoing())
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("held agent still available: %+v", got)
	}
}

func TestMatcher_MissedStreakRoundTrip(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Put(Agent{ID: "a", Mode: PhoneModeDefault})
	m := NewMatcher(repo, &stubPresence{online: []string{"a"}}, &stubHistory{}, MatcherConfig{
		MissedStreakLimit: 2,
		RNG:               rand.New(rand.NewSource(1)),
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := m.RecordMissed(ctx, "a"); err != nil {
			t.Fatalf("record missed: %v", err)
		}
	}
	if _, err := m.Next(ctx, "lead", outgoing()); !errors.Is(err, ErrNoAgents) {
		t.Fatalf("agent past the streak limit must be passed over, got %v", err)
	}

	if err := m.RecordTaken(ctx, "a"); err != nil {
		t.Fatalf("record taken: %v", err)
	}
	if _, err := m.Next(ctx, "lead", outgoing()); err != nil {
		t.Fatalf("cleared agent must be eligible again: %v", err)
	}
}
