package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/api"
	"deen-companion-backend/internal/auth"
	"deen-companion-backend/internal/cachestore"
	"deen-companion-backend/internal/db"
	"deen-companion-backend/internal/mw"
	"deen-companion-backend/internal/notification"
	"deen-companion-backend/internal/store"
	"deen-companion-backend/internal/timings"
	"deen-companion-backend/internal/verse"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	setupLogger(cfg.Server.Environment, cfg.Log)
	log.Info().Str("path", configPath).Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB)

	cache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}
	defer closeCache()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("auth is not configured, set auth.jwt_secret or DEEN_JWT_SECRET")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		log.Warn().Msg("VAPID keys are not configured, push notifications are disabled")
	}

	opts := []timings.Option{}
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		opts = append(opts, timings.WithDispatcher(pool))
	}
	if cfg.MQTT.Enabled {
		publisher, err := notification.NewMQTTPublisher(notification.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start MQTT publisher")
		}
		defer publisher.Close()
		opts = append(opts, timings.WithPublisher(publisher))
	}

	prayerSvc, err := timings.NewService(cfg.Prayer, appStore, cache, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize prayer times")
	}
	go prayerSvc.Run(ctx)

	verseSvc := verse.NewService(cfg.Verse, cache, prayerSvc.Now)

	limiter := mw.NewKeyedRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go pruneLimiter(ctx, limiter)

	handler := api.NewHandler(appStore, prayerSvc, verseSvc, issuer, webpushOptions)
	router := api.NewRouter(handler, cfg.Server, limiter)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server Shutdown")
	}

	log.Info().Msg("server gracefully stopped")
}

func setupLogger(env string, cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			log.Warn().Err(err).Str("file", cfg.File).Msg("could not create log directory, logging to stdout only")
		} else {
			out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			})
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	if cfg.File != "" {
		log.Info().Str("file", cfg.File).Msg("logging to file")
	}
}

// newCache builds the configured cache backend and its cleanup function.
func newCache(ctx context.Context, cfg config.CacheConfig) (cachestore.Cache, func(), error) {
	switch cfg.Backend {
	case "memory", "":
		return cachestore.NewMemory(10 * time.Minute), func() {}, nil
	case "redis":
		r, err := cachestore.NewRedis(ctx, cachestore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "deen:",
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func pruneLimiter(ctx context.Context, limiter *mw.KeyedRateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(30 * time.Minute); n > 0 {
				log.Debug().Int("removed", n).Msg("pruned idle rate limiters")
			}
		}
	}
}
