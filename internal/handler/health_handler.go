package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Karenfernandes20/integrai-sub001/pkg/database"
	"github.com/Karenfernandes20/integrai-sub001/pkg/redis"
	"github.com/Karenfernandes20/integrai-sub001/pkg/response"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db      *database.PostgresDB
	redis   *redis.Client
	version string
}

// NewHealthHandler creates a new HealthHandler. db and redis may be nil
// when the deployment runs without them.
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{
		"status":  "ok",
		"version": h.version,
	}))
}

// Ready handles GET /ready, checking the service's dependencies
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.ErrorWithDetails(
			response.ErrCodeServiceUnavailable, "Dependency check failed", toStringMap(checks)))
		return
	}
	c.JSON(http.StatusOK, response.Success(checks))
}

func toStringMap(in gin.H) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
