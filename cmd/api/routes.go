package main

import (
	"database/sql"
	"errors"
	"time"

	"dialer-core/internal/agents"
	"dialer-core/internal/audit"
	"dialer-core/internal/dialer"
	"dialer-core/internal/orders"
	"dialer-core/internal/reporting"
	"dialer-core/internal/telephony"
	"dialer-core/pkg/logger"
	"dialer-core/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	svc      *dialer.Service
	orders   orders.Repository
	presence *agents.RedisPresence
	gateway  telephony.Gateway
	reports  *reporting.Service
	journal  *audit.Service
	db       *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Switch webhooks (public). The switch authenticates with a shared
	// secret at the network layer; payload validation happens in telephony.
	hooks := r.Group("/webhooks/switch")
	{
		hooks.POST("/incoming", func(c *gin.Context) {
			ev, err := telephony.ParseIncomingEvent(c.Request)
			if err != nil {
				c.JSON(400, gin.H{"error": "bad incoming payload"})
				return
			}
			c.JSON(200, d.svc.HandleIncoming(c.Request.Context(), ev))
		})

		hooks.POST("/leg", func(c *gin.Context) {
			ev, err := telephony.ParseLegEvent(c.Request)
			if err != nil {
				c.JSON(400, gin.H{"error": "bad leg payload"})
				return
			}
			if err := d.svc.HandleLegEvent(c.Request.Context(), ev); err != nil {
				logger.FromGin(c).Error("leg event failed", "err", err)
				c.JSON(500, gin.H{"error": "leg event failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})

		hooks.POST("/finish", func(c *gin.Context) {
			ev, err := telephony.ParseFinishEvent(c.Request)
			if err != nil {
				c.JSON(400, gin.H{"error": "bad finish payload"})
				return
			}
			if err := d.svc.HandleFinishEvent(c.Request.Context(), ev); err != nil {
				logger.FromGin(c).Error("finish event failed", "err", err)
				c.JSON(500, gin.H{"error": "finish event failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})
	}

	v1 := r.Group("/v1")
	{
		// Agent consoles ping while logged in; a seat with no heartbeat for
		// the TTL drops out of matching.
		v1.POST("/agents/:id/heartbeat", func(c *gin.Context) {
			if err := d.presence.Heartbeat(c.Request.Context(), c.Param("id")); err != nil {
				c.JSON(500, gin.H{"error": "heartbeat failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})
		v1.POST("/agents/:id/offline", func(c *gin.Context) {
			if err := d.presence.Offline(c.Request.Context(), c.Param("id")); err != nil {
				c.JSON(500, gin.H{"error": "offline failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})

		v1.GET("/orders/:id/queue", func(c *gin.Context) {
			q, err := d.svc.QueueSnapshot(c.Request.Context(), c.Param("id"))
			if err != nil {
				if errors.Is(err, orders.ErrNotFound) {
					c.JSON(404, gin.H{"error": "order not found"})
					return
				}
				logger.FromGin(c).Error("queue snapshot failed", "err", err)
				c.JSON(500, gin.H{"error": "queue snapshot failed"})
				return
			}
			c.JSON(200, gin.H{"order_id": q.OrderID, "built_at": q.BuiltAt, "counts": q.Counts()})
		})

		v1.GET("/orders/:id/stats", func(c *gin.Context) {
			rng, err := parseRange(c, 24*time.Hour)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			sum, err := d.reports.OrderSummary(c.Request.Context(), reporting.OrderSummaryRequest{
				OrderID: c.Param("id"),
				Range:   rng,
			})
			if err != nil {
				if errors.Is(err, reporting.ErrInvalidRequest) {
					c.JSON(400, gin.H{"error": "invalid request"})
					return
				}
				logger.FromGin(c).Error("order stats failed", "err", err)
				c.JSON(500, gin.H{"error": "order stats failed"})
				return
			}
			c.JSON(200, sum)
		})

		v1.POST("/orders/:id/pause", setOrderStatus(d, orders.StatusPaused, "pause"))
		v1.POST("/orders/:id/resume", setOrderStatus(d, orders.StatusActive, "resume"))

		v1.POST("/cycle", func(c *gin.Context) {
			if err := d.svc.RunCycle(c.Request.Context()); err != nil {
				logger.FromGin(c).Error("manual cycle failed", "err", err)
				c.JSON(500, gin.H{"error": "cycle failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})

		v1.GET("/gateway/health", func(c *gin.Context) {
			if err := d.gateway.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(503, gin.H{"gateway": d.gateway.Name(), "status": "down"})
				return
			}
			c.JSON(200, gin.H{"gateway": d.gateway.Name(), "status": "ok"})
		})
	}
}

func setOrderStatus(d routeDeps, status orders.Status, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := d.orders.SetStatus(c.Request.Context(), id, status)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				c.JSON(404, gin.H{"error": "order not found"})
				return
			}
			c.JSON(500, gin.H{"error": "status update failed"})
			return
		}
		if d.journal != nil {
			if err := d.journal.LogOrderAction(c.Request.Context(), id, action); err != nil {
				logger.FromGin(c).Warn("order action journal failed", "err", err)
			}
		}
		c.JSON(200, gin.H{"status": string(status)})
	}
}

// parseRange reads optional from/to RFC 3339 query params, defaulting to
// the trailing span ending now.
func parseRange(c *gin.Context, span time.Duration) (reporting.TimeRange, error) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.Add(-span), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("bad from timestamp")
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("bad to timestamp")
		}
		rng.To = t
	}
	return rng, nil
}
