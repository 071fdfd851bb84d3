package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/store"
)

// Announcement says that a prayer time has begun.
type Announcement struct {
	Date string     `json:"date"`
	Key  prayer.Key `json:"key"`
	Time string     `json:"time"`
}

// Payload is the JSON body delivered to push subscribers.
type Payload struct {
	Title  string     `json:"title"`
	Body   string     `json:"body"`
	Prayer prayer.Key `json:"prayer"`
	Date   string     `json:"date"`
}

func payloadFor(a Announcement) Payload {
	title := a.Key.Title()
	body := fmt.Sprintf("It's time for %s (%s)", title, a.Time)
	if a.Key == prayer.Sunrise {
		body = fmt.Sprintf("Sunrise at %s", a.Time)
	}
	return Payload{Title: title, Body: body, Prayer: a.Key, Date: a.Date}
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of store.Store the pool needs.
type SubscriptionStore interface {
	SubscriptionsFor(ctx context.Context, prayer string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Announcement
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Announcement, size),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case a := <-wp.jobs:
			log.Info().Int("worker", id).Str("prayer", string(a.Key)).Str("date", a.Date).Msg("processing announcement")
			wp.notify(ctx, a)
		case <-ctx.Done():
			log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues an announcement. It blocks while the queue is full and
// gives up with ctx's error once ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, a Announcement) error {
	select {
	case wp.jobs <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify sends a for every subscriber that wants it.
func (wp *WorkerPool) notify(ctx context.Context, a Announcement) {
	subscriptions, err := wp.store.SubscriptionsFor(ctx, string(a.Key))
	if err != nil {
		log.Error().Err(err).Str("prayer", string(a.Key)).Msg("failed to load subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(payloadFor(a))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode push payload")
		return
	}

	log.Info().Int("count", len(subscriptions)).Str("prayer", string(a.Key)).Msg("sending push notifications")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	// the push service no longer knows this endpoint
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Info().Str("endpoint", sub.Endpoint).Int("status", resp.StatusCode).Msg("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
