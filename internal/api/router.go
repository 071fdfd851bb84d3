package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/auth"
	"deen-companion-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. limiter may be nil, in
// which case one is built from cfg.
func NewRouter(h *Handler, cfg config.ServerConfig, limiter *mw.KeyedRateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(log.Logger), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	if limiter == nil {
		limiter = mw.NewKeyedRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	}
	rateLimiter := mw.RateLimit(limiter, mw.ClientIP)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	requireUser := auth.Middleware(h.issuer, h.store)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/health", h.GetHealth)

		api.GET("/prayers/today", h.GetPrayersToday)
		api.GET("/prayers/day/:date", caching, h.GetPrayersForDay)
		api.GET("/prayers/calendar.ics", caching, h.GetPrayerCalendar)
		api.GET("/verse/today", h.GetVerseToday)

		api.POST("/auth/signup", h.Signup)
		api.POST("/auth/login", h.Login)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		user := api.Group("", requireUser)
		user.GET("/auth/me", h.Me)

		user.GET("/favorites", h.ListFavorites)
		user.POST("/favorites", h.AddFavorite)
		user.DELETE("/favorites/:id", h.RemoveFavorite)

		user.GET("/todos", h.ListTodos)
		user.POST("/todos", h.CreateTodo)
		user.PATCH("/todos/:id", h.UpdateTodo)
		user.DELETE("/todos/:id", h.DeleteTodo)

		user.GET("/challenges", h.ListChallenges)
		user.POST("/challenges", h.CreateChallenge)
		user.POST("/challenges/:id/progress", h.AdvanceChallenge)
		user.DELETE("/challenges/:id", h.DeleteChallenge)

		user.GET("/points", h.GetPoints)
		user.POST("/points", h.AddPoints)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", mw.RequestIDHeader)
	c.ExposeHeaders = []string{mw.RequestIDHeader}
	return c
}
