package telephony

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Behavior scripts how the simulator treats calls to one phone number.
type Behavior struct {
	// AnswerAfterPolls is how many Session polls pass before the client leg
	// comes up. Negative means the call is never answered.
	AnswerAfterPolls int

	// VanishAfterPolls, when positive, makes the session disappear from the
	// switch after that many polls, as a flaky carrier would.
	VanishAfterPolls int
}

// Simulator is an in-memory Gateway for tests and local runs. Calls are
// scripted per phone number; unscripted numbers answer on the second poll.
type Simulator struct {
	mu       sync.Mutex
	sessions map[string]*simSession
	scripts  map[string]Behavior
	seq      int
}

type simSession struct {
	phone     string
	behavior  Behavior
	polls     int
	connected bool
	startedAt time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{
		sessions: map[string]*simSession{},
		scripts:  map[string]Behavior{},
	}
}

// Script sets the behavior for calls to phone.
func (s *Simulator) Script(phone string, b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[phone] = b
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) HealthCheck(context.Context) error { return nil }

func (s *Simulator) Originate(_ context.Context, req OriginateRequest) (OriginateResult, error) {
	if req.Phone == "" || req.TrunkID == "" {
		return OriginateResult{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("sim-%d", s.seq)
	behavior, ok := s.scripts[req.Phone]
	if !ok {
		behavior = Behavior{AnswerAfterPolls: 2}
	}
	s.sessions[id] = &simSession{phone: req.Phone, behavior: behavior, startedAt: time.Now()}
	return OriginateResult{SessionID: id}, nil
}

func (s *Simulator) Session(_ context.Context, sessionID string) (SessionState, error) {
	if sessionID == "" {
		return SessionState{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionState{}, ErrSessionGone
	}
	sess.polls++
	if sess.behavior.VanishAfterPolls > 0 && sess.polls >= sess.behavior.VanishAfterPolls {
		delete(s.sessions, sessionID)
		return SessionState{}, ErrSessionGone
	}
	if sess.behavior.AnswerAfterPolls >= 0 && sess.polls >= sess.behavior.AnswerAfterPolls {
		sess.connected = true
	}
	st := SessionState{SessionID: sessionID, StartedAt: sess.startedAt}
	if sess.connected {
		st.ClientLegID = sessionID + "-client"
	}
	return st, nil
}

func (s *Simulator) Hangup(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Simulator) ActiveCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), nil
}
