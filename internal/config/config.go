package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Gateway GatewayConfig
	Dialer  DialerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// GatewayConfig points at the telephony switch HTTP API.
type GatewayConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration

	// DailyRequestQuota is the switch vendor's API call allowance per day.
	// Zero disables quota tracking.
	DailyRequestQuota int
}

// DialerConfig groups the campaign-independent dialing knobs.
// Per-campaign values (retry intervals, call limits) live on the order, not here.
type DialerConfig struct {
	// PollInterval is the cadence of the answer-wait loop and the queue cycle.
	PollInterval time.Duration

	// StagingWindow is how long a lead may sit in the staged state before it
	// is considered abandoned and returned to the queue.
	StagingWindow time.Duration

	// ConnectNudge is added to a lead's next-call time when it is pulled into
	// a cycle, so a lead that narrowly misses one cycle is eligible in the next.
	ConnectNudge time.Duration

	// MinWaitSeconds and MaxWaitSeconds bound the answer-wait loop.
	// Past MinWaitSeconds an unanswered call may still be counted as reached
	// if the client leg came up; past MaxWaitSeconds it is abandoned.
	MinWaitSeconds int
	MaxWaitSeconds int

	// BackupDialLimit caps how many times a wait loop may re-arm after the
	// switch reports the call gone without a final status.
	BackupDialLimit int

	// IncomingHold is the reservation window for an agent picked to take an
	// incoming call.
	IncomingHold time.Duration

	// CalendarHorizon bounds the working-calendar walk when searching the
	// next dialable moment.
	CalendarHorizon time.Duration

	// MissedStreakLimit is the number of consecutive unanswered assignments
	// after which an agent is passed over until they take a call.
	MissedStreakLimit int

	// SnapshotTTL is how long a queue snapshot served over the API may be
	// reused before it is rebuilt.
	SnapshotTTL time.Duration

	// RequalificationOrderID receives linked leads spawned when a contact is
	// disqualified mid-campaign. Empty disables requalification.
	RequalificationOrderID string

	Predictive PredictiveConfig
}

// PredictiveConfig tunes the predictive flow controller.
type PredictiveConfig struct {
	// SuccessFloor is the minimal reach percentage over the recent window
	// below which no extra calls are admitted.
	SuccessFloor float64

	// FlowMax is the absolute ceiling on concurrently flowing calls.
	FlowMax int

	// HistoryWindow is the lookback used to estimate reach rate and flow.
	HistoryWindow time.Duration

	// RowsPerAgent limits the history sample to RowsPerAgent * available agents.
	RowsPerAgent int

	// OverdialMargin is added to the average observed flow to form the target.
	OverdialMargin int

	// IdleMultiplier caps the target flow at IdleMultiplier * idle agents.
	IdleMultiplier int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	if c.DB.SSLMode == "" && c.App.Env != "production" {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Gateway.BaseURL = strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL"))
	c.Gateway.Token = os.Getenv("GATEWAY_TOKEN")
	c.Gateway.RequestTimeout = durationOr("GATEWAY_TIMEOUT", 10*time.Second)
	c.Gateway.DailyRequestQuota = intOr("GATEWAY_DAILY_QUOTA", 0)

	c.Dialer.PollInterval = durationOr("DIALER_POLL_INTERVAL", time.Second)
	c.Dialer.StagingWindow = durationOr("DIALER_STAGING_WINDOW", 30*time.Second)
	c.Dialer.ConnectNudge = durationOr("DIALER_CONNECT_NUDGE", 7*time.Second)
	c.Dialer.MinWaitSeconds = intOr("DIALER_MIN_WAIT_SECONDS", 15)
	c.Dialer.MaxWaitSeconds = intOr("DIALER_MAX_WAIT_SECONDS", 25)
	c.Dialer.BackupDialLimit = intOr("DIALER_BACKUP_LIMIT", 5)
	c.Dialer.IncomingHold = durationOr("DIALER_INCOMING_HOLD", 15*time.Second)
	c.Dialer.CalendarHorizon = durationOr("DIALER_CALENDAR_HORIZON", 366*24*time.Hour)
	c.Dialer.MissedStreakLimit = intOr("DIALER_MISSED_STREAK_LIMIT", 3)
	c.Dialer.SnapshotTTL = durationOr("DIALER_SNAPSHOT_TTL", 10*time.Second)
	c.Dialer.RequalificationOrderID = strings.TrimSpace(os.Getenv("DIALER_REQUAL_ORDER_ID"))

	c.Dialer.Predictive.SuccessFloor = floatOr("PREDICTIVE_SUCCESS_FLOOR", 70)
	c.Dialer.Predictive.FlowMax = intOr("PREDICTIVE_FLOW_MAX", 100)
	c.Dialer.Predictive.HistoryWindow = durationOr("PREDICTIVE_HISTORY_WINDOW", 5*time.Minute)
	c.Dialer.Predictive.RowsPerAgent = intOr("PREDICTIVE_ROWS_PER_AGENT", 15)
	c.Dialer.Predictive.OverdialMargin = intOr("PREDICTIVE_OVERDIAL_MARGIN", 3)
	c.Dialer.Predictive.IdleMultiplier = intOr("PREDICTIVE_IDLE_MULTIPLIER", 4)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("GATEWAY_BASE_URL is required"))
	}
	if c.IsProduction() && c.Gateway.Token == "" {
		errs = append(errs, errors.New("GATEWAY_TOKEN is required in production"))
	}

	if c.Dialer.PollInterval <= 0 {
		errs = append(errs, errors.New("DIALER_POLL_INTERVAL must be positive"))
	}
	if c.Dialer.MinWaitSeconds <= 0 {
		errs = append(errs, errors.New("DIALER_MIN_WAIT_SECONDS must be positive"))
	}
	if c.Dialer.MaxWaitSeconds < c.Dialer.MinWaitSeconds {
		errs = append(errs, fmt.Errorf("DIALER_MAX_WAIT_SECONDS must be >= DIALER_MIN_WAIT_SECONDS, got %d < %d", c.Dialer.MaxWaitSeconds, c.Dialer.MinWaitSeconds))
	}
	if c.Dialer.BackupDialLimit < 0 {
		errs = append(errs, errors.New("DIALER_BACKUP_LIMIT must not be negative"))
	}
	if c.Dialer.CalendarHorizon <= 0 {
		errs = append(errs, errors.New("DIALER_CALENDAR_HORIZON must be positive"))
	}
	if c.Dialer.SnapshotTTL <= 0 {
		errs = append(errs, errors.New("DIALER_SNAPSHOT_TTL must be positive"))
	}

	if c.Dialer.Predictive.SuccessFloor < 0 || c.Dialer.Predictive.SuccessFloor > 100 {
		errs = append(errs, fmt.Errorf("PREDICTIVE_SUCCESS_FLOOR must be within [0,100], got %v", c.Dialer.Predictive.SuccessFloor))
	}
	if c.Dialer.Predictive.FlowMax <= 0 {
		errs = append(errs, errors.New("PREDICTIVE_FLOW_MAX must be positive"))
	}
	if c.Dialer.Predictive.RowsPerAgent <= 0 {
		errs = append(errs, errors.New("PREDICTIVE_ROWS_PER_AGENT must be positive"))
	}
	if c.Dialer.Predictive.IdleMultiplier <= 0 {
		errs = append(errs, errors.New("PREDICTIVE_IDLE_MULTIPLIER must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func intOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatOr(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func durationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
