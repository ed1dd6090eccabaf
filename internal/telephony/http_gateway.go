package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HTTPGateway talks to the switch vendor's HTTP API.
//
// Every request is counted against the vendor's daily quota when a tracker
// is attached; crossing the warn threshold logs once per crossing.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client

	quota *QuotaTracker
	log   *slog.Logger
}

type HTTPGatewayConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration

	Quota  *QuotaTracker
	Logger *slog.Logger
}

func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("telephony: gateway base url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("telephony: bad gateway base url: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		quota:   cfg.Quota,
		log:     log,
	}, nil
}

func (g *HTTPGateway) Name() string { return "http-switch" }

func (g *HTTPGateway) HealthCheck(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

func (g *HTTPGateway) Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if req.Phone == "" || req.TrunkID == "" {
		return OriginateResult{}, ErrInvalidArgument
	}
	var out OriginateResult
	if err := g.do(ctx, http.MethodPost, "/v1/calls", req, &out); err != nil {
		return OriginateResult{}, err
	}
	if out.SessionID == "" {
		return OriginateResult{}, fmt.Errorf("telephony: originate returned no session id")
	}
	return out, nil
}

func (g *HTTPGateway) Session(ctx context.Context, sessionID string) (SessionState, error) {
	if sessionID == "" {
		return SessionState{}, ErrInvalidArgument
	}
	var out SessionState
	err := g.do(ctx, http.MethodGet, "/v1/calls/"+url.PathEscape(sessionID), nil, &out)
	return out, err
}

func (g *HTTPGateway) Hangup(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidArgument
	}
	return g.do(ctx, http.MethodDelete, "/v1/calls/"+url.PathEscape(sessionID), nil, nil)
}

func (g *HTTPGateway) ActiveCount(ctx context.Context) (int, error) {
	var out struct {
		Active int `json:"active"`
	}
	if err := g.do(ctx, http.MethodGet, "/v1/calls/active", nil, &out); err != nil {
		return 0, err
	}
	return out.Active, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) error {
	if g.quota != nil {
		g.quota.Count(ctx, g.log)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSessionGone
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telephony: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("telephony: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
