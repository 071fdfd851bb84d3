package api

import (
	"context"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"deen-companion-backend/internal/auth"
	"deen-companion-backend/internal/mw"
	"deen-companion-backend/internal/store"
	"deen-companion-backend/internal/timings"
	"deen-companion-backend/internal/verse"
)

// PrayerSource supplies daily timetables in the configured timezone.
type PrayerSource interface {
	Now() time.Time
	Location() *time.Location
	Day(ctx context.Context, date time.Time) (timings.Day, error)
}

// VerseSource supplies the verse of the day.
type VerseSource interface {
	Today(ctx context.Context) (verse.Verse, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	prayers PrayerSource
	verses  VerseSource
	issuer  *auth.Issuer
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, prayers PrayerSource, verses VerseSource, issuer *auth.Issuer, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		prayers: prayers,
		verses:  verses,
		issuer:  issuer,
		webpush: webpushOptions,
	}
}

// internalError logs err and answers with a generic 500.
func internalError(c *gin.Context, err error, msg string) {
	log.Error().Err(err).Str("request_id", mw.GetRequestID(c)).Str("path", c.FullPath()).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// GetHealth reports liveness.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}
