package telephony

import "context"

// NoopGateway accepts every request and never connects anything.
// Useful in wiring before a real switch is configured.
type NoopGateway struct{}

func (NoopGateway) Name() string                          { return "noop" }
func (NoopGateway) HealthCheck(context.Context) error      { return nil }
func (NoopGateway) Hangup(context.Context, string) error   { return nil }
func (NoopGateway) ActiveCount(context.Context) (int, error) { return 0, nil }

func (NoopGateway) Originate(_ context.Context, req OriginateRequest) (OriginateResult, error) {
	if req.Phone == "" || req.TrunkID == "" {
		return OriginateResult{}, ErrInvalidArgument
	}
	return OriginateResult{SessionID: "noop-" + req.ReferenceID}, nil
}

func (NoopGateway) Session(_ context.Context, sessionID string) (SessionState, error) {
	if sessionID == "" {
		return SessionState{}, ErrInvalidArgument
	}
	return SessionState{}, ErrSessionGone
}
