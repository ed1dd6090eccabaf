package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer-core/internal/agents"
	"dialer-core/internal/audit"
	"dialer-core/internal/calls"
	"dialer-core/internal/config"
	"dialer-core/internal/dialer"
	"dialer-core/internal/leads"
	"dialer-core/internal/lifecycle"
	"dialer-core/internal/notify"
	"dialer-core/internal/orders"
	"dialer-core/internal/predictive"
	"dialer-core/internal/reporting"
	"dialer-core/internal/taskq"
	"dialer-core/internal/telephony"
	"dialer-core/internal/trunks"
	"dialer-core/pkg/logger"
	"dialer-core/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const dialTaskKey = "dialer:tasks"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "dialer-core")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	orderRepo := orders.NewPostgresRepo(db)
	leadRepo := leads.NewPostgresRepo(db)
	callRepo := calls.NewPostgresRepo(db)
	agentRepo := agents.NewPostgresRepo(db)
	presence := agents.NewRedisPresence(rdb)

	pool, err := trunks.NewPostgresRepo(db).ListEnabled(rootCtx)
	if err != nil {
		log.Error("trunk pool load failed", "err", err)
		os.Exit(1)
	}
	selector := trunks.NewSelector(pool, trunks.NewRedisUsage(rdb), nil)

	notifier := notify.NewRedisNotifier(rdb)

	gateway, err := buildGateway(cfg, rdb, notifier, log)
	if err != nil {
		log.Error("gateway init failed", "err", err)
		os.Exit(1)
	}

	journal := audit.NewService(audit.NewPostgresRepo(db), logger.Component(log, "audit"))
	machine := lifecycle.NewMachine(lifecycle.Config{
		CalendarHorizon:   cfg.Dialer.CalendarHorizon,
		MissedStreakLimit: cfg.Dialer.MissedStreakLimit,
		Hooks:             journal,
	})
	matcher := agents.NewMatcher(agentRepo, presence, callRepo, agents.MatcherConfig{
		MissedStreakLimit: cfg.Dialer.MissedStreakLimit,
	})
	router := dialer.NewRouter(gateway, selector, leadRepo, callRepo,
		logger.Component(log, "router"), dialer.RouterConfig{
			PollInterval:    cfg.Dialer.PollInterval,
			MinWaitSeconds:  cfg.Dialer.MinWaitSeconds,
			MaxWaitSeconds:  cfg.Dialer.MaxWaitSeconds,
			BackupDialLimit: cfg.Dialer.BackupDialLimit,
		})
	tasks := taskq.New(rdb, dialTaskKey, logger.Component(log, "taskq"))
	flow := predictive.NewController(predictive.Config{
		SuccessFloor:   cfg.Dialer.Predictive.SuccessFloor,
		FlowMax:        cfg.Dialer.Predictive.FlowMax,
		HistoryWindow:  cfg.Dialer.Predictive.HistoryWindow,
		RowsPerAgent:   cfg.Dialer.Predictive.RowsPerAgent,
		OverdialMargin: cfg.Dialer.Predictive.OverdialMargin,
		IdleMultiplier: cfg.Dialer.Predictive.IdleMultiplier,
	})

	svc := dialer.NewService(cfg.Dialer, dialer.Deps{
		Orders:                 orderRepo,
		Leads:                  leadRepo,
		Calls:                  callRepo,
		Machine:                machine,
		Matcher:                matcher,
		Presence:               presence,
		Router:                 router,
		Trunks:                 selector,
		Flow:                   flow,
		Notifier:               notifier,
		Tasks:                  tasks,
		Snapshots:              dialer.NewRedisSnapshotCache(rdb, cfg.Dialer.SnapshotTTL),
		Blocklist:              dialer.NewRedisBlocklist(rdb),
		Log:                    logger.Component(log, "dialer"),
		RequalificationOrderID: cfg.Dialer.RequalificationOrderID,
	})

	// Background loops: the dial cycle and the task consumer.
	go func() {
		if err := svc.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dial cycle loop stopped", "err", err)
			stop()
		}
	}()
	go func() {
		if err := tasks.Consume(rootCtx, svc.HandleTask); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("task consumer stopped", "err", err)
			stop()
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, routeDeps{
		svc:      svc,
		orders:   orderRepo,
		presence: presence,
		gateway:  gateway,
		reports:  reporting.NewService(reporting.NewPostgresRepo(db)),
		journal:  journal,
		db:       db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// buildGateway picks the switch adapter. The reserved base url "simulator"
// runs the in-memory switch for local work without a vendor account.
func buildGateway(cfg config.Config, rdb *redis.Client, alerts notify.Notifier, log *slog.Logger) (telephony.Gateway, error) {
	if cfg.Gateway.BaseURL == "simulator" {
		return telephony.NewSimulator(), nil
	}
	var quota *telephony.QuotaTracker
	if cfg.Gateway.DailyRequestQuota > 0 {
		quota = telephony.NewQuotaTracker(rdb, cfg.Gateway.DailyRequestQuota, alerts)
	}
	return telephony.NewHTTPGateway(telephony.HTTPGatewayConfig{
		BaseURL:        cfg.Gateway.BaseURL,
		Token:          cfg.Gateway.Token,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		Quota:          quota,
		Logger:         logger.Component(log, "gateway"),
	})
}
