package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/tenant"
)

// Version is stamped at build time with -ldflags "-X ...handlers.Version=".
var Version = "dev"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats is satisfied by *tenant.Manager.
type PoolStats interface {
	Stats() []tenant.PoolStats
}

// HealthHandler serves the unauthenticated /health probes. The meta
// database is the only hard dependency; tenant pools open lazily.
type HealthHandler struct {
	meta    Pinger
	tenants PoolStats
	started time.Time
}

func NewHealthHandler(meta Pinger, tenants PoolStats) *HealthHandler {
	return &HealthHandler{meta: meta, tenants: tenants, started: time.Now()}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.meta.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": gin.H{"meta_database": "unhealthy: " + err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": gin.H{"meta_database": "healthy"},
	})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	stats := h.tenants.Stats()
	var conns, acquired int32
	for _, s := range stats {
		conns += s.TotalConns
		acquired += s.AcquiredConns
	}
	c.JSON(http.StatusOK, gin.H{
		"app":            "setflow",
		"version":        Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"tenants": gin.H{
			"open_pools":     len(stats),
			"total_conns":    conns,
			"acquired_conns": acquired,
			"pools":          stats,
		},
	})
}
