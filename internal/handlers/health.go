// Package handlers exposes the service's internal HTTP surface:
// health, manual sync triggers and outcome history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/scheduler"
	"github.com/flipstack/sync-service/internal/store"
)

// Handler carries the dependencies of the HTTP surface.
type Handler struct {
	store    *store.Store
	sched    *scheduler.Scheduler
	registry *platform.Registry
}

// New creates the handler set.
func New(st *store.Store, sched *scheduler.Scheduler, registry *platform.Registry) *Handler {
	return &Handler{store: st, sched: sched, registry: registry}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthCheck handles the health check endpoint.
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}

	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
	} else {
		response.Database = "not configured"
	}

	c.JSON(http.StatusOK, response)
}

// ListPlatforms returns the registered marketplace slugs.
func (h *Handler) ListPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.registry.Slugs()})
}
