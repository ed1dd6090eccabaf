package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer", SSLMode: "disable"},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Gateway: GatewayConfig{BaseURL: "http://switch.local", RequestTimeout: 10 * time.Second},
		Dialer: DialerConfig{
			PollInterval:      time.Second,
			StagingWindow:     30 * time.Second,
			ConnectNudge:      7 * time.Second,
			MinWaitSeconds:    15,
			MaxWaitSeconds:    25,
			BackupDialLimit:   5,
			IncomingHold:      15 * time.Second,
			CalendarHorizon:   366 * 24 * time.Hour,
			MissedStreakLimit: 3,
			SnapshotTTL:       10 * time.Second,
			Predictive: PredictiveConfig{
				SuccessFloor:   70,
				FlowMax:        100,
				HistoryWindow:  5 * time.Minute,
				RowsPerAgent:   15,
				OverdialMargin: 3,
				IdleMultiplier: 4,
			},
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_WaitWindowMustBeOrdered(t *testing.T) {
	c := validConfig()
	c.Dialer.MinWaitSeconds = 30
	c.Dialer.MaxWaitSeconds = 20
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for max wait below min wait")
	}
}

func TestValidate_ProductionRequiresGatewayToken(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Gateway.Token = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without GATEWAY_TOKEN")
	}
}

func TestValidate_SuccessFloorBounds(t *testing.T) {
	c := validConfig()
	c.Dialer.Predictive.SuccessFloor = 140
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for success floor above 100")
	}
}
