package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

type HealthHandler struct {
	store  cache.ValkeyStore
	logger logger.Logger
}

func NewHealthHandler(store cache.ValkeyStore, logger logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// GET /health - Quick liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "workbench-authz",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - Readiness depends on the permission store being reachable
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn("Readiness check failed, permission store unreachable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  "permission store unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
