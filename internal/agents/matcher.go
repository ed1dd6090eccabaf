package agents

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
)

// CallHistory is the slice of call storage the matcher needs for scoring.
// calls.Repository satisfies it.
type CallHistory interface {
	// ListForLead returns the lead's finished attempts, oldest first.
	ListForLead(ctx context.Context, leadID string) ([]calls.Call, error)
}

// Query describes one assignment request.
type Query struct {
	Type CallType

	// Simulator selects training seats instead of live ones.
	Simulator bool

	// AgentIDs and AgentGroups carry the order's seat assignment. Both
	// empty means the order takes any eligible agent.
	AgentIDs    []string
	AgentGroups []string
}

// admits reports whether the order's assignment lets this agent in.
func (q Query) admits(a Agent) bool {
	if len(q.AgentIDs) == 0 && len(q.AgentGroups) == 0 {
		return true
	}
	for _, id := range q.AgentIDs {
		if id == a.ID {
			return true
		}
	}
	return a.InGroup(q.AgentGroups)
}

// MatcherConfig tunes the matcher. Zero values get safe defaults.
type MatcherConfig struct {
	// MissedStreakLimit is the consecutive-missed count at which an agent is
	// passed over.
	MissedStreakLimit int

	// RNG breaks score ties. Inject a seeded source in tests.
	RNG *rand.Rand
}

// Matcher picks which free agent takes the next call.
//
// Scoring favors agents who already talked to this lead: a shared past
// conversation beats any stranger, a callback request pins its agent, and
// longer talk time weighs heavier. Ties break randomly so equally scored
// agents share load.
type Matcher struct {
	repo     Repository
	presence Presence
	history  CallHistory

	missedLimit int
	rng         *rand.Rand
}

func NewMatcher(repo Repository, presence Presence, history CallHistory, cfg MatcherConfig) *Matcher {
	m := &Matcher{
		repo:        repo,
		presence:    presence,
		history:     history,
		missedLimit: cfg.MissedStreakLimit,
		rng:         cfg.RNG,
	}
	if m.missedLimit <= 0 {
		m.missedLimit = 3
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

const (
	// scoreCallbackConversation weighs a conversation that ended with the
	// client asking to be called back: that agent should take the follow-up.
	scoreCallbackConversation = 100

	// scoreConversation is the baseline for any prior conversation with
	// this lead.
	scoreConversation = 10

	// scorePerTalkMinute rewards each whole minute the agent already spent
	// talking to this lead.
	scorePerTalkMinute = 100
)

// Available lists agents that are online, free, mode-eligible, admitted by
// the order's assignment and not passed over for missing too many
// assignments in a row.
func (m *Matcher) Available(ctx context.Context, q Query) ([]Agent, error) {
	online, err := m.presence.Online(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Agent, 0, len(online))
	for _, id := range online {
		a, err := m.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Heartbeat from an unknown seat; skip it.
				continue
			}
			return nil, err
		}
		if a.Training != q.Simulator {
			continue
		}
		if !a.Takes(q.Type) {
			continue
		}
		if !q.admits(a) {
			continue
		}
		if a.MissedStreak >= m.missedLimit {
			continue
		}
		busy, err := m.presence.Busy(ctx, id)
		if err != nil {
			return nil, err
		}
		if busy {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Next picks one agent to take the lead's call. A single candidate wins
// outright; with more, each is scored by their history with this lead.
// Returns ErrNoAgents when nobody is free.
func (m *Matcher) Next(ctx context.Context, leadID string, q Query) (Agent, error) {
	candidates, err := m.Available(ctx, q)
	if err != nil {
		return Agent{}, err
	}
	switch len(candidates) {
	case 0:
		return Agent{}, ErrNoAgents
	case 1:
		return candidates[0], nil
	}

	history, err := m.history.ListForLead(ctx, leadID)
	if err != nil && !errors.Is(err, calls.ErrNotFound) {
		return Agent{}, err
	}

	best := make([]Agent, 0, 1)
	bestScore := -1
	for _, a := range candidates {
		score := affinity(a.ID, history)
		switch {
		case score > bestScore:
			bestScore = score
			best = best[:0]
			best = append(best, a)
		case score == bestScore:
			best = append(best, a)
		}
	}
	return best[m.rng.Intn(len(best))], nil
}

// affinity sums the agent's past conversations with this lead.
func affinity(agentID string, history []calls.Call) int {
	score := 0
	for _, c := range history {
		if c.AgentID != agentID || !c.Finished() {
			continue
		}
		if c.Status == leads.StatusCallbackRequested {
			score += scoreCallbackConversation
		} else {
			score += scoreConversation
		}
		score += scorePerTalkMinute * (c.TalkSeconds / 60)
	}
	return score
}

// Reserve holds the agent for an imminent connect.
func (m *Matcher) Reserve(ctx context.Context, agentID string, ttl time.Duration) (bool, error) {
	return m.presence.Hold(ctx, agentID, ttl)
}

// RecordMissed bumps the agent's pass-over counter; RecordTaken clears it.
func (m *Matcher) RecordMissed(ctx context.Context, agentID string) error {
	a, err := m.repo.Get(ctx, agentID)
	if err != nil {
		return err
	}
	return m.repo.SetMissedStreak(ctx, agentID, a.MissedStreak+1)
}

func (m *Matcher) RecordTaken(ctx context.Context, agentID string) error {
	return m.repo.SetMissedStreak(ctx, agentID, 0)
}
