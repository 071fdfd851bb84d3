package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/model"
)

type createChallengeRequest struct {
	Title        string `json:"title" binding:"required"`
	Target       int    `json:"target" binding:"required,min=1"`
	RewardPoints int    `json:"reward_points" binding:"min=0"`
}

type progressRequest struct {
	Step *int `json:"step"`
}

// ListChallenges handles GET /api/challenges.
func (h *Handler) ListChallenges(c *gin.Context) {
	challenges, err := h.store.ListChallenges(c.Request.Context(), userID(c))
	if err != nil {
		internalError(c, err, "failed to list challenges")
		return
	}
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	c.JSON(http.StatusOK, challenges)
}

// CreateChallenge handles POST /api/challenges.
func (h *Handler) CreateChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch := &model.Challenge{
		UserID:       userID(c),
		Title:        req.Title,
		Target:       req.Target,
		RewardPoints: req.RewardPoints,
	}
	if err := h.store.CreateChallenge(c.Request.Context(), ch); err != nil {
		internalError(c, err, "failed to create challenge")
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// AdvanceChallenge handles POST /api/challenges/:id/progress. The body is
// optional and defaults to a step of one.
func (h *Handler) AdvanceChallenge(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	step := 1
	if req.Step != nil {
		step = *req.Step
	}
	if step == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step must not be zero"})
		return
	}

	ch, err := h.store.AdvanceChallenge(c.Request.Context(), userID(c), c.Param("id"), step)
	if err != nil {
		notFoundOr(c, err, "challenge")
		return
	}
	c.JSON(http.StatusOK, ch)
}

// DeleteChallenge handles DELETE /api/challenges/:id.
func (h *Handler) DeleteChallenge(c *gin.Context) {
	if err := h.store.DeleteChallenge(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		notFoundOr(c, err, "challenge")
		return
	}
	c.Status(http.StatusNoContent)
}
