package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/model"
)

const (
	defaultPointsLimit = 20
	maxPointsLimit     = 100
)

type addPointsRequest struct {
	Amount int    `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,max=128"`
}

type pointsResponse struct {
	Total   int64               `json:"total"`
	Entries []model.PointsEntry `json:"entries"`
}

// GetPoints returns the user's balance and most recent ledger entries (?limit=N).
func (h *Handler) GetPoints(c *gin.Context) {
	limit := defaultPointsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPointsLimit)
	}

	ctx := c.Request.Context()
	total, err := h.store.PointsTotal(ctx, userID(c))
	if err != nil {
		internalError(c, err, "failed to load points")
		return
	}
	entries, err := h.store.ListPoints(ctx, userID(c), limit)
	if err != nil {
		internalError(c, err, "failed to load points")
		return
	}
	if entries == nil {
		entries = []model.PointsEntry{}
	}
	c.JSON(http.StatusOK, pointsResponse{Total: total, Entries: entries})
}

// AddPoints records a ledger entry, e.g. after a completed zikr session.
func (h *Handler) AddPoints(c *gin.Context) {
	var req addPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.store.AddPoints(c.Request.Context(), userID(c), req.Amount, req.Reason)
	if err != nil {
		internalError(c, err, "failed to add points")
		return
	}
	c.JSON(http.StatusCreated, entry)
}
