package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GetVerseToday returns the verse of the day.
func (h *Handler) GetVerseToday(c *gin.Context) {
	v, err := h.verses.Today(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load verse of the day")
		c.JSON(http.StatusBadGateway, gin.H{"error": "verse is unavailable"})
		return
	}
	c.JSON(http.StatusOK, v)
}
