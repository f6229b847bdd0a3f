package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"metaform/internal/infrastructure/storage/postgres"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pool      *postgres.Pool
	startedAt time.Time
	version   string
}

func NewHealthHandler(pool *postgres.Pool, version string) *HealthHandler {
	return &HealthHandler{pool: pool, startedAt: time.Now(), version: version}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready; checks database connectivity when a pool
// is configured.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pool != nil {
		if err := h.pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"database": gin.H{
					"status": "down",
					"error":  err.Error(),
				},
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"version": h.version,
		"uptime":  time.Since(h.startedAt).String(),
	}
	if h.pool != nil {
		info["database"] = h.pool.Stats()
	}
	c.JSON(http.StatusOK, info)
}
