package timings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"deen-companion-backend/internal/notification"
	"deen-companion-backend/internal/prayer"
)

// Run polls the local wall clock and announces prayer transitions until ctx
// is cancelled. It returns immediately when the watcher is disabled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Info().Msg("prayer watcher is disabled, not starting")
		return
	}
	log.Info().Dur("interval", s.cfg.Interval).Msg("starting prayer watcher")

	s.tickAndLog(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("prayer watcher shutting down")
			return
		case <-ticker.C:
			s.tickAndLog(ctx)
		}
	}
}

func (s *Service) tickAndLog(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		log.Error().Err(err).Msg("prayer watcher tick failed")
	}
}

// Tick derives the prayer status at the current wall clock, publishes it and,
// when the current prayer changed since the previous tick on the same day,
// announces the new one. The first tick of each day only records the state.
func (s *Service) Tick(ctx context.Context) (prayer.Derivation, error) {
	now := s.Now()
	day, err := s.Day(ctx, now)
	if err != nil {
		return prayer.Derivation{}, err
	}

	d := prayer.Derive(day.Times, prayer.MinutesOf(now))

	if s.publisher != nil {
		if err := s.publisher.PublishStatus(ctx, day.Date, d); err != nil {
			log.Warn().Err(err).Msg("failed to publish prayer status")
		}
	}

	if s.primedDate != day.Date {
		s.primedDate = day.Date
		s.last = d.Current
		return d, nil
	}

	if sameKey(s.last, d.Current) {
		return d, nil
	}
	s.last = d.Current

	if d.Current == nil || !s.announce[*d.Current] {
		return d, nil
	}

	a := notification.Announcement{Date: day.Date, Key: *d.Current, Time: day.Times.At(*d.Current)}
	log.Info().Str("prayer", string(a.Key)).Str("time", a.Time).Msg("prayer time has begun")

	if s.pool != nil {
		if err := s.pool.Dispatch(ctx, a); err != nil {
			return d, fmt.Errorf("failed to dispatch %s announcement: %w", a.Key, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAnnouncement(ctx, a); err != nil {
			log.Warn().Err(err).Msg("failed to publish announcement")
		}
	}
	return d, nil
}

func sameKey(a, b *prayer.Key) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
