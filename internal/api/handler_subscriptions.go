package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string   `json:"endpoint" binding:"required"`
	P256DH   string   `json:"p256dh" binding:"required"`
	Auth     string   `json:"auth" binding:"required"`
	Prayers  []string `json:"prayers"`
}

// PutSubscription handles the creation or replacement of a subscription.
// An empty prayer list subscribes to every announced prayer. A valid bearer
// token links the subscription to its user, after which only that user may
// replace or delete it.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, p := range req.Prayers {
		if !prayer.Key(p).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown prayer " + p})
			return
		}
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		UserID:   h.optionalUserID(c),
		Prayers:  req.Prayers,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), &subscription); err != nil {
		if errors.Is(err, store.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "subscription belongs to another user"})
		} else {
			internalError(c, err, "failed to save subscription")
		}
		return
	}

	c.Status(http.StatusCreated)
}

// optionalUserID returns the subject of a valid bearer token, or nil.
func (h *Handler) optionalUserID(c *gin.Context) *string {
	if h.issuer == nil {
		return nil
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	id, err := h.issuer.Verify(token)
	if err != nil {
		return nil
	}
	return &id
}

func sameUser(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.store.GetSubscription(c.Request.Context(), req.Endpoint)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.Status(http.StatusNoContent)
		return
	case err != nil:
		internalError(c, err, "failed to load subscription")
		return
	case existing.UserID != nil && !sameUser(existing.UserID, h.optionalUserID(c)):
		c.JSON(http.StatusForbidden, gin.H{"error": "subscription belongs to another user"})
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(c, err, "failed to delete subscription")
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads key from the raw query without URL-decoding, since push
// endpoints are stored exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			internalError(c, err, "failed to load subscription")
		}
		return
	}

	prayers := subscription.Prayers
	if prayers == nil {
		prayers = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"prayers": prayers})
}

// GetVAPIDPublicKey returns the application server key browsers need to subscribe.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
