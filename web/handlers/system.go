package handlers

import (
	"context"
	"net/http"

	"clauselens/qa"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is anything that can report backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and operational endpoints.
type SystemHandler struct {
	db     Pinger
	cache  *qa.ClauseCache
	logger *zap.Logger
}

func NewSystemHandler(db Pinger, cache *qa.ClauseCache, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{db: db, cache: cache, logger: logger}
}

// Health reports service liveness and database connectivity.
// GET /api/health
func (h *SystemHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "database": dbStatus})
}

// CacheStats exposes clause cache counters.
// GET /api/cache/stats
func (h *SystemHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}
