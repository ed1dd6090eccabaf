package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
	"dialer-core/internal/orders"
	"dialer-core/internal/telephony"
	"dialer-core/internal/trunks"
)

// TrunkPicker is the slice of trunk selection the router and the inbound
// path need. trunks.Selector satisfies it.
type TrunkPicker interface {
	Pick(ctx context.Context, scheme trunks.Scheme, countryCode string) (trunks.Trunk, error)
	Release(ctx context.Context, trunkID string) error

	// ByAddress resolves the trunk an inbound call arrived on, by dialed
	// number or SIP registration id.
	ByAddress(addr string) (trunks.Trunk, bool)

	// Free reports whether the trunk has a spare channel for an inbound leg.
	Free(ctx context.Context, trunkID string) (bool, error)
}

// RouterConfig tunes the answer-wait loop. Zero values get safe defaults.
type RouterConfig struct {
	// PollInterval is how often the session is checked while waiting.
	PollInterval time.Duration

	// MinWaitSeconds and MaxWaitSeconds bound the per-attempt wait budget.
	// Each attempt draws a budget uniformly from the range so clients do not
	// learn a fixed ring length.
	MinWaitSeconds int
	MaxWaitSeconds int

	// BackupDialLimit caps re-originations after the switch loses a session
	// without a final status.
	BackupDialLimit int

	// RNG draws wait budgets. Inject a seeded source in tests.
	RNG *rand.Rand

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// DialRequest is one outbound attempt the router should place.
type DialRequest struct {
	Lead  leads.Lead
	Order orders.Order

	// AgentExtension bridges the agent first (progressive). Empty means
	// predictive: the client is dialed bare.
	AgentExtension string
	AgentID        string

	// FlowAtDial is recorded on the call for the flow controller.
	FlowAtDial int
}

// DialResult reports how the attempt went. When Reached is true the call is
// still live; the switch's finish event completes it and the trunk channel
// stays acquired until then. When false the router has already hung up and
// released the trunk, and the caller records the no-answer outcome.
type DialResult struct {
	Call    calls.Call
	Reached bool
}

// Router places outbound calls and babysits them until the client leg comes
// up or the wait budget runs out.
type Router struct {
	gateway telephony.Gateway
	trunks  TrunkPicker
	leads   leads.Repository
	calls   calls.Repository
	log     *slog.Logger

	poll        time.Duration
	minWait     int
	maxWait     int
	backupLimit int
	rng         *rand.Rand
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRouter(gateway telephony.Gateway, picker TrunkPicker, leadRepo leads.Repository, callRepo calls.Repository, log *slog.Logger, cfg RouterConfig) *Router {
	r := &Router{
		gateway:     gateway,
		trunks:      picker,
		leads:       leadRepo,
		calls:       callRepo,
		log:         log,
		poll:        cfg.PollInterval,
		minWait:     cfg.MinWaitSeconds,
		maxWait:     cfg.MaxWaitSeconds,
		backupLimit: cfg.BackupDialLimit,
		rng:         cfg.RNG,
		now:         cfg.Now,
		sleep:       cfg.Sleep,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.poll <= 0 {
		r.poll = time.Second
	}
	if r.minWait <= 0 {
		r.minWait = 15
	}
	if r.maxWait < r.minWait {
		r.maxWait = r.minWait + 10
	}
	if r.backupLimit < 0 {
		r.backupLimit = 0
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	return r
}

// Dial stages the lead, acquires a trunk channel, originates the call and
// waits for the client leg.
func (r *Router) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if req.Lead.ID == "" || req.Order.ID == "" {
		return DialResult{}, fmt.Errorf("dialer: lead and order required")
	}

	callID := uuid.NewString()
	now := r.now()

	if err := r.leads.Stage(ctx, req.Lead.ID, callID, now); err != nil {
		return DialResult{}, fmt.Errorf("stage lead %s: %w", req.Lead.ID, err)
	}

	trunk, err := r.trunks.Pick(ctx, trunks.Scheme(req.Order.TrunkScheme), req.Lead.CountryCode)
	if err != nil {
		r.unstage(ctx, req.Lead.ID)
		return DialResult{}, fmt.Errorf("pick trunk for lead %s: %w", req.Lead.ID, err)
	}

	call := calls.Call{
		ID:         callID,
		OrderID:    req.Order.ID,
		LeadID:     req.Lead.ID,
		AgentID:    req.AgentID,
		TrunkID:    trunk.ID,
		Direction:  calls.DirectionOutbound,
		Phone:      req.Lead.Phone,
		FlowAtDial: req.FlowAtDial,
		StartedAt:  now,
	}

	res, err := r.gateway.Originate(ctx, telephony.OriginateRequest{
		Phone:          req.Lead.Phone,
		TrunkID:        trunk.ID,
		AgentExtension: req.AgentExtension,
		ReferenceID:    callID,
	})
	if err != nil {
		r.unstage(ctx, req.Lead.ID)
		if rerr := r.trunks.Release(ctx, trunk.ID); rerr != nil {
			r.log.WarnContext(ctx, "trunk release failed", "trunk_id", trunk.ID, "error", rerr)
		}
		return DialResult{}, fmt.Errorf("originate %s: %w", req.Lead.Phone, err)
	}
	call.SessionID = res.SessionID

	if err := r.calls.Create(ctx, call); err != nil {
		// The call is already ringing; keep going and log the write.
		r.log.ErrorContext(ctx, "call record create failed", "call_id", callID, "error", err)
	}

	result, err := r.wait(ctx, &call, req.Lead.Phone, trunk.ID)
	if err != nil {
		return DialResult{}, err
	}
	if !result.Reached {
		if err := r.gateway.Hangup(ctx, call.SessionID); err != nil && !errors.Is(err, telephony.ErrSessionGone) {
			r.log.WarnContext(ctx, "hangup failed", "session_id", call.SessionID, "error", err)
		}
		if err := r.trunks.Release(ctx, trunk.ID); err != nil {
			r.log.WarnContext(ctx, "trunk release failed", "trunk_id", trunk.ID, "error", err)
		}
	}
	return result, nil
}

// wait polls the session until the client connects or the budget runs out.
// A vanished session re-arms with a backup dial, which resets the budget.
func (r *Router) wait(ctx context.Context, call *calls.Call, phone, trunkID string) (DialResult, error) {
	budget := r.waitBudget()
	deadline := r.now().Add(budget)

	for {
		if err := r.sleep(ctx, r.poll); err != nil {
			return DialResult{}, err
		}

		st, err := r.gateway.Session(ctx, call.SessionID)
		switch {
		case errors.Is(err, telephony.ErrSessionGone):
			if call.BackupDials >= r.backupLimit {
				r.log.InfoContext(ctx, "session lost, backup limit reached",
					"call_id", call.ID, "backup_dials", call.BackupDials)
				r.persist(ctx, call)
				return DialResult{Call: *call, Reached: false}, nil
			}
			res, oerr := r.gateway.Originate(ctx, telephony.OriginateRequest{
				Phone:       phone,
				TrunkID:     trunkID,
				ReferenceID: call.ID,
			})
			if oerr != nil {
				r.persist(ctx, call)
				return DialResult{Call: *call, Reached: false}, nil
			}
			call.BackupDials++
			call.SessionID = res.SessionID
			deadline = r.now().Add(r.waitBudget())
			r.log.InfoContext(ctx, "backup dial armed",
				"call_id", call.ID, "session_id", call.SessionID, "backup_dials", call.BackupDials)
			continue

		case err != nil:
			return DialResult{}, fmt.Errorf("poll session %s: %w", call.SessionID, err)
		}

		if st.Connected() {
			call.AnsweredAt = r.now()
			r.persist(ctx, call)
			return DialResult{Call: *call, Reached: true}, nil
		}
		if !r.now().Before(deadline) {
			r.persist(ctx, call)
			return DialResult{Call: *call, Reached: false}, nil
		}
	}
}

func (r *Router) waitBudget() time.Duration {
	spread := r.maxWait - r.minWait
	secs := r.minWait
	if spread > 0 {
		secs += r.rng.Intn(spread + 1)
	}
	return time.Duration(secs) * time.Second
}

func (r *Router) persist(ctx context.Context, call *calls.Call) {
	if err := r.calls.Update(ctx, *call); err != nil {
		r.log.ErrorContext(ctx, "call record update failed", "call_id", call.ID, "error", err)
	}
}

func (r *Router) unstage(ctx context.Context, leadID string) {
	if err := r.leads.Release(ctx, leadID); err != nil {
		r.log.WarnContext(ctx, "lead release failed", "lead_id", leadID, "error", err)
	}
}
