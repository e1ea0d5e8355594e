package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flipstack/sync-service/internal/engine"
	"github.com/flipstack/sync-service/internal/store"
)

// TriggerSync schedules an orchestration run for one product. The run
// itself is asynchronous; its outcome shows up in the outcome history.
func (h *Handler) TriggerSync(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId is required"})
		return
	}

	// Reject unknown products up front so the caller gets a 404
	// instead of a silently discarded run.
	if _, err := h.store.ProductByID(c.Request.Context(), productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sched.TriggerSync(productID, engine.TriggerManual)
	c.JSON(http.StatusAccepted, gin.H{
		"productId": productID,
		"status":    "scheduled",
	})
}

// ListOutcomes returns the most recent run outcomes for one product.
func (h *Handler) ListOutcomes(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	outcomes, err := h.store.OutcomesForProduct(c.Request.Context(), productID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId": productID,
		"outcomes":  outcomes,
	})
}
