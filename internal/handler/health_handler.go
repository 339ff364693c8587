package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHealthHandler constructs a health handler. The Redis client may be nil
// when caching is disabled.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports dependency readiness. The database is required; Redis only
// degrades the response because the service runs uncached without it.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	dbCtx, dbCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer dbCancel()
	if err := h.db.PingContext(dbCtx); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}

	if h.redis != nil {
		redisCtx, redisCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer redisCancel()
		if err := h.redis.Ping(redisCtx).Err(); err != nil {
			checks["redis"] = "degraded"
		} else {
			checks["redis"] = "up"
		}
	}

	body := gin.H{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	c.JSON(status, body)
}
