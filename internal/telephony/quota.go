package telephony

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dialer-core/internal/notify"
	"dialer-core/pkg/utils"
)

// quotaWarnRatio is the fill level at which we start warning about the
// vendor's daily API allowance.
const quotaWarnRatio = 0.9

// QuotaTracker counts switch API requests against the vendor's daily quota.
//
// The counter lives in redis so every worker process shares it. Warnings go
// to the log and to the alerts channel, once per crossing, not per request.
type QuotaTracker struct {
	rdb    *redis.Client
	limit  int
	alerts notify.Notifier

	mu     sync.Mutex
	warned bool
	day    string
}

func NewQuotaTracker(rdb *redis.Client, dailyLimit int, alerts notify.Notifier) *QuotaTracker {
	if rdb == nil || dailyLimit <= 0 {
		return nil
	}
	if alerts == nil {
		alerts = notify.NoopNotifier{}
	}
	return &QuotaTracker{rdb: rdb, limit: dailyLimit, alerts: alerts}
}

// Count records one API request and warns when usage crosses the threshold.
func (q *QuotaTracker) Count(ctx context.Context, log *slog.Logger) {
	if q == nil {
		return
	}
	now := time.Now()
	key := "gateway:quota:" + now.Format("2006-01-02")
	n, err := utils.IncrDailyCounter(ctx, q.rdb, key, now)
	if err != nil {
		// Quota accounting must never block call flow.
		return
	}
	q.observe(ctx, n, now, log)
}

// observe applies the once-per-crossing warning logic to a counter reading.
func (q *QuotaTracker) observe(ctx context.Context, n int64, now time.Time, log *slog.Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	today := now.Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.warned = false
	}
	if q.warned {
		return
	}
	if float64(n) < quotaWarnRatio*float64(q.limit) {
		return
	}
	q.warned = true
	if log == nil {
		log = slog.Default()
	}
	log.Warn("switch api quota nearly exhausted",
		"used", n,
		"limit", q.limit,
	)
	if err := q.alerts.Publish(ctx, notify.ChannelAlerts, notify.Event{
		Kind: "gateway.quota",
		At:   now,
		Data: map[string]int64{"used": n, "limit": int64(q.limit)},
	}); err != nil {
		log.Warn("quota alert publish failed", "error", err)
	}
}
