package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/model"
)

type addFavoriteRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Ref   string `json:"ref" binding:"required"`
	Label string `json:"label"`
}

func validFavoriteKind(kind string) bool {
	return slices.Contains(model.FavoriteKinds, kind)
}

// ListFavorites handles GET /api/favorites[?kind=...].
func (h *Handler) ListFavorites(c *gin.Context) {
	kind := c.Query("kind")
	if kind != "" && !validFavoriteKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind, use one of " + strings.Join(model.FavoriteKinds, ", ")})
		return
	}

	favorites, err := h.store.ListFavorites(c.Request.Context(), userID(c), kind)
	if err != nil {
		internalError(c, err, "failed to list favorites")
		return
	}
	if favorites == nil {
		favorites = []model.Favorite{}
	}
	c.JSON(http.StatusOK, favorites)
}

// AddFavorite bookmarks a reciter, surah, verse or zikr. Adding the same one twice is a no-op.
func (h *Handler) AddFavorite(c *gin.Context) {
	var req addFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validFavoriteKind(req.Kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind, use one of " + strings.Join(model.FavoriteKinds, ", ")})
		return
	}

	f, err := h.store.AddFavorite(c.Request.Context(), &model.Favorite{
		UserID: userID(c),
		Kind:   req.Kind,
		Ref:    req.Ref,
		Label:  req.Label,
	})
	if err != nil {
		internalError(c, err, "failed to add favorite")
		return
	}
	c.JSON(http.StatusCreated, f)
}

// RemoveFavorite handles DELETE /api/favorites/:id.
func (h *Handler) RemoveFavorite(c *gin.Context) {
	if err := h.store.RemoveFavorite(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		notFoundOr(c, err, "favorite")
		return
	}
	c.Status(http.StatusNoContent)
}
