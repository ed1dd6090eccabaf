package predictive

import (
	"math"
	"time"
)

// Config tunes the flow controller. Zero values get conservative defaults.
type Config struct {
	// SuccessFloor is the minimal reach percentage below which no extra
	// calls are admitted.
	SuccessFloor float64

	// FlowMax is the absolute ceiling on concurrently flowing calls.
	FlowMax int

	// HistoryWindow is the lookback for reach rate and flow estimation.
	HistoryWindow time.Duration

	// RowsPerAgent limits the history sample to RowsPerAgent * idle agents.
	RowsPerAgent int

	// OverdialMargin is added to the average observed flow to form the target.
	OverdialMargin int

	// IdleMultiplier caps the target at IdleMultiplier * idle agents.
	IdleMultiplier int
}

func (c Config) withDefaults() Config {
	out := c
	if out.SuccessFloor <= 0 {
		out.SuccessFloor = 70
	}
	if out.FlowMax <= 0 {
		out.FlowMax = 100
	}
	if out.HistoryWindow <= 0 {
		out.HistoryWindow = 5 * time.Minute
	}
	if out.RowsPerAgent <= 0 {
		out.RowsPerAgent = 15
	}
	if out.OverdialMargin <= 0 {
		out.OverdialMargin = 3
	}
	if out.IdleMultiplier <= 0 {
		out.IdleMultiplier = 4
	}
	return out
}

// Attempt is one recent dial as the controller sees it.
type Attempt struct {
	// Answered means a human picked up.
	Answered bool

	// Counted is false for attempts excluded from the reach rate, such as
	// agent-handled recalls that say nothing about machine pacing.
	Counted bool

	// FlowAtDial is how many calls were in flight when the attempt started.
	FlowAtDial int
}

// Snapshot is the live state the controller decides on.
type Snapshot struct {
	// ActiveCalls is the number of calls currently in flight.
	ActiveCalls int

	// IdleAgents is the number of free predictive agents.
	IdleAgents int

	// History is the recent attempt window, newest first. The controller
	// truncates it to RowsPerAgent * IdleAgents rows itself.
	History []Attempt
}

// Decision is the controller's verdict on starting one more call.
type Decision struct {
	Admit bool

	// TargetFlow is the computed sustainable flow; zero when the decision
	// was made before the flow estimate applied.
	TargetFlow int

	Reason string
}

// Controller paces predictive dialing.
//
// The admission ladder, cheapest check first:
//  1. nothing in flight: admit, someone must be dialed for data to exist
//  2. fewer calls than idle agents: admit, agents are starving
//  3. no usable history: admit
//  4. reach rate under the floor: skip, we are already annoying people
//  5. otherwise admit while active stays under the flow target
type Controller struct {
	cfg Config
}

func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg.withDefaults()}
}

// Window returns the history lookback callers should load.
func (c *Controller) Window() time.Duration { return c.cfg.HistoryWindow }

// HistoryLimit returns the maximal useful history size for idle idle agents.
func (c *Controller) HistoryLimit(idleAgents int) int {
	if idleAgents < 1 {
		idleAgents = 1
	}
	return idleAgents * c.cfg.RowsPerAgent
}

func (c *Controller) Evaluate(s Snapshot) Decision {
	if s.IdleAgents <= 0 {
		return Decision{Admit: false, Reason: "no idle agents"}
	}
	if s.ActiveCalls <= 0 {
		return Decision{Admit: true, Reason: "nothing in flight"}
	}
	if s.ActiveCalls < s.IdleAgents {
		return Decision{Admit: true, Reason: "agents starving"}
	}

	history := s.History
	if limit := c.HistoryLimit(s.IdleAgents); len(history) > limit {
		history = history[:limit]
	}

	counted, answered := 0, 0
	flowSum, flowRows := 0, 0
	for _, a := range history {
		flowSum += a.FlowAtDial
		flowRows++
		if !a.Counted {
			continue
		}
		counted++
		if a.Answered {
			answered++
		}
	}
	if counted == 0 {
		return Decision{Admit: true, Reason: "no usable history"}
	}

	rate := 100 * float64(answered) / float64(counted)
	if rate < c.cfg.SuccessFloor {
		return Decision{Admit: false, Reason: "reach rate under floor"}
	}

	target := int(math.Round(float64(flowSum)/float64(flowRows))) + c.cfg.OverdialMargin
	if byIdle := s.IdleAgents * c.cfg.IdleMultiplier; target > byIdle {
		target = byIdle
	}
	if target > c.cfg.FlowMax {
		target = c.cfg.FlowMax
	}

	if s.ActiveCalls < target {
		return Decision{Admit: true, TargetFlow: target, Reason: "under flow target"}
	}
	return Decision{Admit: false, TargetFlow: target, Reason: "flow target reached"}
}
