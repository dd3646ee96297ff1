package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolCounter reports how many tenant pools are open.
type PoolCounter interface {
	OpenPools() int
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	meta  Pinger
	pools PoolCounter
}

func NewHealthHandler(meta Pinger, pools PoolCounter) *HealthHandler {
	return &HealthHandler{meta: meta, pools: pools}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready and checks the meta database.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.meta != nil {
		if err := h.meta.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"checks": gin.H{"meta_database": "unhealthy: " + err.Error()},
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": gin.H{"meta_database": "healthy"},
	})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	open := 0
	if h.pools != nil {
		open = h.pools.OpenPools()
	}
	c.JSON(http.StatusOK, gin.H{
		"app":          "produceledger",
		"version":      Version,
		"tenant_pools": open,
	})
}
