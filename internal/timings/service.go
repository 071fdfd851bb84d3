package timings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/cachestore"
	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/notification"
	"deen-companion-backend/internal/parse"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/store"
)

// DateLayout is the calendar-date format used for keys and URLs.
const DateLayout = "2006-01-02"

// ErrUpstream wraps failures of the prayer-times API.
var ErrUpstream = errors.New("prayer times upstream failed")

// Day is one calendar day's timetable for the configured location.
type Day struct {
	Date  string          `json:"date"`
	Hijri string          `json:"hijri,omitempty"`
	Times prayer.DayTimes `json:"timings"`
}

// TimetableStore is the part of store.Store the service persists to.
type TimetableStore interface {
	GetTimetable(ctx context.Context, date string) (*model.Timetable, error)
	SaveTimetable(ctx context.Context, t *model.Timetable) error
}

// Dispatcher queues announcements for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, a notification.Announcement) error
}

// Service resolves daily prayer timetables and watches for prayer transitions.
type Service struct {
	cfg       config.PrayerConfig
	loc       *time.Location
	store     TimetableStore
	cache     cachestore.Cache
	client    *http.Client
	now       func() time.Time
	announce  map[prayer.Key]bool
	attempts  uint
	backoff   time.Duration
	pool      Dispatcher
	publisher notification.Publisher

	primedDate string
	last       *prayer.Key
}

// Option customises a Service.
type Option func(*Service)

// WithDispatcher sends announcements to d when the current prayer changes.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.pool = d }
}

// WithPublisher broadcasts status and announcements through p.
func WithPublisher(p notification.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetry sets how many times a failed upstream request is tried and the
// initial delay between tries.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *Service) {
		if attempts == 0 {
			attempts = 1
		}
		s.attempts = attempts
		s.backoff = delay
	}
}

// WithHTTPClient replaces the HTTP client used for the upstream API.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// NewService creates a timetable service for cfg.
func NewService(cfg config.PrayerConfig, st TimetableStore, c cachestore.Cache, opts ...Option) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL, prayer times will not use a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	announce := make(map[prayer.Key]bool)
	for _, k := range prayer.ParseKeys(cfg.Announce) {
		announce[k] = true
	}

	s := &Service{
		cfg:   cfg,
		loc:   loc,
		store: st,
		cache: c,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		now:      time.Now,
		announce: announce,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Now returns the wall clock in the configured timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Location is the configured timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today returns the timetable for the current local date.
func (s *Service) Today(ctx context.Context) (Day, error) {
	return s.Day(ctx, s.Now())
}

// Day returns the timetable for date's calendar day, looking in the cache,
// then the database, and finally the upstream API. Upstream results are
// persisted and cached.
func (s *Service) Day(ctx context.Context, date time.Time) (Day, error) {
	key := date.Format(DateLayout)
	cacheKey := "timetable:" + key

	if raw, found, err := s.cache.Get(ctx, cacheKey); err != nil {
		log.Warn().Err(err).Str("date", key).Msg("timetable cache read failed")
	} else if found {
		var d Day
		if err := json.Unmarshal(raw, &d); err == nil {
			return d, nil
		}
		log.Warn().Str("date", key).Msg("discarding undecodable cached timetable")
	}

	d, err := s.fromStore(ctx, key)
	if err != nil {
		d, err = s.FetchDay(ctx, date)
		if err != nil {
			return Day{}, err
		}
		if err := s.store.SaveTimetable(ctx, toModel(d)); err != nil {
			log.Error().Err(err).Str("date", key).Msg("failed to persist timetable")
		}
	}

	if raw, err := json.Marshal(d); err == nil {
		if err := s.cache.Set(ctx, cacheKey, raw, s.ttlFor(key)); err != nil {
			log.Warn().Err(err).Str("date", key).Msg("timetable cache write failed")
		}
	}
	return d, nil
}

func (s *Service) fromStore(ctx context.Context, key string) (Day, error) {
	t, err := s.store.GetTimetable(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("date", key).Msg("timetable lookup failed")
		}
		return Day{}, err
	}
	return fromModel(t), nil
}

// ttlFor keeps today's entry until local midnight and other days for a day.
func (s *Service) ttlFor(key string) time.Duration {
	now := s.Now()
	if key == now.Format(DateLayout) {
		return cachestore.UntilEndOfDay(now)
	}
	return 24 * time.Hour
}

// FetchDay downloads date's timetable from the AlAdhan API.
func (s *Service) FetchDay(ctx context.Context, date time.Time) (Day, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.cfg.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(s.cfg.Longitude, 'f', -1, 64))
	q.Set("method", strconv.Itoa(s.cfg.Method))
	q.Set("timezonestring", s.loc.String())
	endpoint := fmt.Sprintf("%s/timings/%s?%s", s.cfg.BaseURL, date.Format("02-01-2006"), q.Encode())

	var apiResp apiResponse
	err := retry.Do(
		func() error {
			var err error
			apiResp, err = s.fetchOnce(ctx, endpoint)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.backoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("prayer times request failed, retrying")
		}),
	)
	if err != nil {
		return Day{}, err
	}

	times, err := normalize(apiResp.Data.Timings)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	log.Info().Str("date", date.Format(DateLayout)).Msg("fetched prayer timetable")
	return Day{Date: date.Format(DateLayout), Hijri: apiResp.hijri(), Times: times}, nil
}

// fetchOnce performs a single upstream request. Client errors and malformed
// bodies are not retried.
func (s *Service) fetchOnce(ctx context.Context, endpoint string) (apiResponse, error) {
	var apiResp apiResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apiResp, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apiResp, fmt.Errorf("%w: http request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: received non-200 status code: %d", ErrUpstream, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return apiResp, retry.Unrecoverable(err)
		}
		return apiResp, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResp, fmt.Errorf("%w: failed to read response body: %v", ErrUpstream, err)
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return apiResp, retry.Unrecoverable(fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err))
	}
	if apiResp.Code != http.StatusOK {
		return apiResp, retry.Unrecoverable(fmt.Errorf("%w: api returned code %d (%s)", ErrUpstream, apiResp.Code, apiResp.Status))
	}
	return apiResp, nil
}

// normalize picks the six prayers out of the upstream timings and
// rewrites each as "HH:MM".
func normalize(raw map[string]string) (prayer.DayTimes, error) {
	names := map[prayer.Key]string{
		prayer.Fajr:    "Fajr",
		prayer.Sunrise: "Sunrise",
		prayer.Dhuhr:   "Dhuhr",
		prayer.Asr:     "Asr",
		prayer.Maghrib: "Maghrib",
		prayer.Isha:    "Isha",
	}
	clean := make(map[prayer.Key]string, len(names))
	for k, name := range names {
		c, err := parse.ParseClock(raw[name])
		if err != nil {
			return prayer.DayTimes{}, fmt.Errorf("timing %s: %w", name, err)
		}
		clean[k] = c.String()
	}
	return prayer.DayTimes{
		Fajr:    clean[prayer.Fajr],
		Sunrise: clean[prayer.Sunrise],
		Dhuhr:   clean[prayer.Dhuhr],
		Asr:     clean[prayer.Asr],
		Maghrib: clean[prayer.Maghrib],
		Isha:    clean[prayer.Isha],
	}, nil
}

func toModel(d Day) *model.Timetable {
	return &model.Timetable{
		Date:      d.Date,
		Fajr:      d.Times.Fajr,
		Sunrise:   d.Times.Sunrise,
		Dhuhr:     d.Times.Dhuhr,
		Asr:       d.Times.Asr,
		Maghrib:   d.Times.Maghrib,
		Isha:      d.Times.Isha,
		HijriDate: d.Hijri,
	}
}

func fromModel(t *model.Timetable) Day {
	return Day{
		Date:  t.Date,
		Hijri: t.HijriDate,
		Times: prayer.DayTimes{
			Fajr:    t.Fajr,
			Sunrise: t.Sunrise,
			Dhuhr:   t.Dhuhr,
			Asr:     t.Asr,
			Maghrib: t.Maghrib,
			Isha:    t.Isha,
		},
	}
}
