package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dialer-core/internal/agents"
	"dialer-core/internal/calls"
	"dialer-core/internal/config"
	"dialer-core/internal/leads"
	"dialer-core/internal/lifecycle"
	"dialer-core/internal/notify"
	"dialer-core/internal/orders"
	"dialer-core/internal/predictive"
	"dialer-core/internal/taskq"
)

// TaskKindDial is the queue kind for one outbound attempt.
const TaskKindDial = "dial"

// busyTTL caps how long an agent stays marked busy if the finish event for
// their call never arrives.
const busyTTL = 4 * time.Hour

// dialTask is the payload behind TaskKindDial.
type dialTask struct {
	LeadID         string `json:"lead_id"`
	OrderID        string `json:"order_id"`
	AgentID        string `json:"agent_id,omitempty"`
	AgentExtension string `json:"agent_extension,omitempty"`
	FlowAtDial     int    `json:"flow_at_dial"`
}

// Dispatcher hands dial tasks to workers. taskq.Queue satisfies it.
type Dispatcher interface {
	Enqueue(ctx context.Context, t taskq.Task) error
}

// Deps collects everything the service wires together.
type Deps struct {
	Orders   orders.Repository
	Leads    leads.Repository
	Calls    calls.Repository
	Machine  *lifecycle.Machine
	Matcher  *agents.Matcher
	Presence agents.Presence
	Router   *Router
	Trunks   TrunkPicker
	Flow     *predictive.Controller
	Notifier notify.Notifier
	Tasks    Dispatcher
	Log      *slog.Logger

	// Snapshots caches queue snapshots for console polling. Nil disables
	// caching and every QueueSnapshot call rebuilds.
	Snapshots SnapshotCache

	// Blocklist bars callers from the inbound path. Nil blocks nobody.
	Blocklist Blocklist

	// RequalificationOrderID receives linked leads spawned for disqualified
	// contacts. Empty disables requalification.
	RequalificationOrderID string

	Now func() time.Time
}

// Service runs the dialing cycle: release stale checkouts, rebuild queues,
// dispatch progressive calls to reserved agents and let the flow controller
// pace predictive orders.
type Service struct {
	cfg config.DialerConfig

	orders   orders.Repository
	leads    leads.Repository
	calls    calls.Repository
	machine  *lifecycle.Machine
	matcher  *agents.Matcher
	presence agents.Presence
	router   *Router
	trunks   TrunkPicker
	flow     *predictive.Controller
	notifier notify.Notifier
	tasks    Dispatcher
	log      *slog.Logger

	snapshots SnapshotCache
	blocklist Blocklist

	builder       *QueueBuilder
	requalOrderID string
	now           func() time.Time
}

func NewService(cfg config.DialerConfig, d Deps) *Service {
	s := &Service{
		cfg:           cfg,
		orders:        d.Orders,
		leads:         d.Leads,
		calls:         d.Calls,
		machine:       d.Machine,
		matcher:       d.Matcher,
		presence:      d.Presence,
		router:        d.Router,
		trunks:        d.Trunks,
		flow:          d.Flow,
		notifier:      d.Notifier,
		tasks:         d.Tasks,
		log:           d.Log,
		snapshots:     d.Snapshots,
		blocklist:     d.Blocklist,
		builder:       NewQueueBuilder(cfg.ConnectNudge),
		requalOrderID: d.RequalificationOrderID,
		now:           d.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.NoopNotifier{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run executes cycles until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.log.ErrorContext(ctx, "dial cycle failed", "error", err)
			}
		}
	}
}

// RunCycle does one pass over every active order.
func (s *Service) RunCycle(ctx context.Context) error {
	now := s.now()

	freed, err := s.leads.ReleaseStale(ctx, now.Add(-s.cfg.StagingWindow))
	if err != nil {
		return err
	}
	if freed > 0 {
		s.log.InfoContext(ctx, "released stale checkouts", "count", freed)
	}

	active, err := s.orders.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, order := range active {
		if err := s.cycleOrder(ctx, order, now); err != nil {
			s.log.ErrorContext(ctx, "order cycle failed", "order_id", order.ID, "error", err)
		}
	}

	if err := s.runSimulator(ctx); err != nil {
		s.log.ErrorContext(ctx, "simulator cycle failed", "error", err)
	}
	return nil
}

// runSimulator keeps free training seats exercised: each idle trainee gets a
// synthetic connect push instead of live traffic.
func (s *Service) runSimulator(ctx context.Context) error {
	trainees, err := s.matcher.Available(ctx, agents.Query{Type: agents.CallTypeOutgoing, Simulator: true})
	if err != nil {
		return err
	}
	for _, a := range trainees {
		ok, err := s.matcher.Reserve(ctx, a.ID, s.cfg.StagingWindow)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.presence.SetBusy(ctx, a.ID, busyTTL); err != nil {
			s.log.WarnContext(ctx, "simulator set busy failed", "agent_id", a.ID, "error", err)
			s.releaseHold(ctx, a.ID)
			continue
		}
		s.publish(ctx, notify.AgentChannel(a.ID), "call.training", map[string]string{
			"extension": a.Extension,
		})
	}
	return nil
}

// QueueSnapshot returns the queue for one order, from the short-lived cache
// when a recent build exists, so console polling does not hammer storage.
func (s *Service) QueueSnapshot(ctx context.Context, orderID string) (Queue, error) {
	if s.snapshots != nil {
		if q, ok := s.snapshots.Get(ctx, orderID); ok {
			return q, nil
		}
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Queue{}, err
	}
	all, err := s.leads.ListForOrder(ctx, orderID)
	if err != nil {
		return Queue{}, err
	}
	q := s.builder.Build(order, all, s.now())
	if s.snapshots != nil {
		s.snapshots.Set(ctx, orderID, q)
	}
	return q, nil
}

func (s *Service) cycleOrder(ctx context.Context, order orders.Order, now time.Time) error {
	all, err := s.leads.ListForOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	q := s.builder.Build(order, all, now)

	s.publish(ctx, notify.ChannelQueue, "queue.snapshot", map[string]any{
		"order_id": order.ID,
		"counts":   q.Counts(),
	})
	if len(q.Due) == 0 {
		return nil
	}

	switch order.Mode {
	case orders.ModePredictive:
		return s.dispatchPredictive(ctx, order, q)
	default:
		return s.dispatchProgressive(ctx, order, q)
	}
}

// orderQuery translates an order's seat assignment into a matcher query.
func orderQuery(order orders.Order, t agents.CallType) agents.Query {
	return agents.Query{
		Type:        t,
		AgentIDs:    order.AgentIDs,
		AgentGroups: order.AgentGroups,
	}
}

// dispatchProgressive pairs due leads with reserved agents, one task each,
// until either runs out.
func (s *Service) dispatchProgressive(ctx context.Context, order orders.Order, q Queue) error {
	for _, lead := range q.Due {
		agent, err := s.matcher.Next(ctx, lead.ID, orderQuery(order, agents.CallTypeOutgoing))
		if err != nil {
			if errors.Is(err, agents.ErrNoAgents) {
				return nil
			}
			return err
		}
		ok, err := s.matcher.Reserve(ctx, agent.ID, s.cfg.StagingWindow)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the reservation race; the next cycle retries this lead.
			continue
		}
		if err := s.enqueueDial(ctx, dialTask{
			LeadID:         lead.ID,
			OrderID:        order.ID,
			AgentID:        agent.ID,
			AgentExtension: agent.Extension,
		}); err != nil {
			s.releaseHold(ctx, agent.ID)
			return err
		}
	}
	return nil
}

// dispatchPredictive asks the flow controller for admissions and dials bare
// client legs; agents are attached on answer.
func (s *Service) dispatchPredictive(ctx context.Context, order orders.Order, q Queue) error {
	idle, err := s.matcher.Available(ctx, orderQuery(order, agents.CallTypePredictive))
	if err != nil {
		return err
	}

	activeCalls, err := s.router.gateway.ActiveCount(ctx)
	if err != nil {
		return err
	}

	history, err := s.calls.ListSince(ctx, order.ID, s.now().Add(-s.flow.Window()), s.flow.HistoryLimit(len(idle)))
	if err != nil {
		return err
	}

	snap := predictive.Snapshot{
		ActiveCalls: activeCalls,
		IdleAgents:  len(idle),
		History:     toAttempts(history),
	}

	for _, lead := range q.Due {
		decision := s.flow.Evaluate(snap)
		if !decision.Admit {
			s.log.DebugContext(ctx, "predictive admission denied",
				"order_id", order.ID, "reason", decision.Reason, "target_flow", decision.TargetFlow)
			return nil
		}
		if err := s.enqueueDial(ctx, dialTask{
			LeadID:     lead.ID,
			OrderID:    order.ID,
			FlowAtDial: snap.ActiveCalls,
		}); err != nil {
			return err
		}
		// Push the lead's due time past the connect window so the next
		// cycle does not re-admit it while the task is still in flight.
		lead.NextCallAt = s.now().Add(s.cfg.ConnectNudge)
		if err := s.leads.Update(ctx, lead); err != nil {
			s.log.WarnContext(ctx, "predictive nudge failed", "lead_id", lead.ID, "error", err)
		}
		// Count the admission against the snapshot so one cycle cannot
		// burst past the target.
		snap.ActiveCalls++
	}
	return nil
}

// toAttempts maps finished calls into the controller's view. Agent-driven
// recalls say nothing about machine pacing, so they stay in the flow average
// but out of the reach rate.
func toAttempts(history []calls.Call) []predictive.Attempt {
	out := make([]predictive.Attempt, 0, len(history))
	for _, c := range history {
		if !c.Finished() {
			continue
		}
		out = append(out, predictive.Attempt{
			Answered:   c.Reached(),
			Counted:    countsForPacing(c.Status),
			FlowAtDial: c.FlowAtDial,
		})
	}
	return out
}

func countsForPacing(status leads.StatusCode) bool {
	switch status {
	case leads.StatusPriorityRecall, leads.StatusOperatorRecall:
		return false
	default:
		return true
	}
}

func (s *Service) enqueueDial(ctx context.Context, t dialTask) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, taskq.Task{
		ID:   uuid.NewString(),
		Kind: TaskKindDial,
		Data: raw,
	})
}

func (s *Service) publish(ctx context.Context, channel, kind string, data any) {
	ev := notify.Event{Kind: kind, At: s.now(), Data: data}
	if err := s.notifier.Publish(ctx, channel, ev); err != nil {
		s.log.WarnContext(ctx, "publish failed", "channel", channel, "kind", kind, "error", err)
	}
}
