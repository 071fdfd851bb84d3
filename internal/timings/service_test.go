package timings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/cachestore"
	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/notification"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/store"
)

const timingsBody = `{
  "code": 200,
  "status": "OK",
  "data": {
    "timings": {
      "Fajr": "05:30 (UTC)",
      "Sunrise": "06:45 (UTC)",
      "Dhuhr": "12:15 (UTC)",
      "Asr": "15:30 (UTC)",
      "Sunset": "17:58 (UTC)",
      "Maghrib": "18:00 (UTC)",
      "Isha": "19:30 (UTC)",
      "Imsak": "05:20 (UTC)",
      "Midnight": "23:52 (UTC)"
    },
    "date": {
      "readable": "18 Oct 2026",
      "hijri": {"date": "07-05-1448", "day": "07", "year": "1448", "month": {"number": 5, "en": "Jumādá al-ūlá"}}
    }
  }
}`

type memTimetables struct {
	mu    sync.Mutex
	rows  map[string]model.Timetable
	saves int
}

func newMemTimetables() *memTimetables {
	return &memTimetables{rows: make(map[string]model.Timetable)}
}

func (m *memTimetables) GetTimetable(_ context.Context, date string) (*model.Timetable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[date]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *memTimetables) SaveTimetable(_ context.Context, t *model.Timetable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.Date] = *t
	m.saves++
	return nil
}

type recordingDispatcher struct {
	got []notification.Announcement
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a notification.Announcement) error {
	d.got = append(d.got, a)
	return nil
}

type recordingPublisher struct {
	statuses      []prayer.Derivation
	announcements []notification.Announcement
}

func (p *recordingPublisher) PublishStatus(_ context.Context, _ string, d prayer.Derivation) error {
	p.statuses = append(p.statuses, d)
	return nil
}

func (p *recordingPublisher) PublishAnnouncement(_ context.Context, a notification.Announcement) error {
	p.announcements = append(p.announcements, a)
	return nil
}

func newUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if !strings.HasPrefix(r.URL.Path, "/timings/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(timingsBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.PrayerConfig {
	return config.PrayerConfig{
		Enabled:   true,
		BaseURL:   baseURL,
		Latitude:  51.5074,
		Longitude: -0.1278,
		Method:    2,
		Timezone:  "UTC",
		Interval:  time.Second,
		Announce:  []string{"fajr", "dhuhr", "asr", "maghrib", "isha"},
	}
}

// clock is a settable wall clock.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestService_FetchDay(t *testing.T) {
	var hits int32
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(timingsBody))
	}))
	defer srv.Close()

	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute))
	require.NoError(t, err)

	day, err := s.FetchDay(context.Background(), time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/timings/18-10-2026", gotPath)
	assert.Contains(t, gotQuery, "latitude=51.5074")
	assert.Contains(t, gotQuery, "method=2")
	assert.Contains(t, gotQuery, "timezonestring=UTC")

	assert.Equal(t, "2026-10-18", day.Date)
	assert.Equal(t, "07 Jumādá al-ūlá 1448 AH", day.Hijri)
	assert.Equal(t, prayer.DayTimes{
		Fajr: "05:30", Sunrise: "06:45", Dhuhr: "12:15", Asr: "15:30", Maghrib: "18:00", Isha: "19:30",
	}, day.Times)
}

func TestService_FetchDay_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		hits   int32
	}{
		{"server error is retried", http.StatusInternalServerError, "", 3},
		{"client error", http.StatusBadRequest, "", 1},
		{"bad json", http.StatusOK, "{", 1},
		{"api error code", http.StatusOK, `{"code": 400, "status": "Bad Request"}`, 1},
		{"missing timing", http.StatusOK, `{"code": 200, "status": "OK", "data": {"timings": {"Fajr": "05:30"}}}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute),
				WithRetry(3, time.Millisecond))
			require.NoError(t, err)

			_, err = s.FetchDay(context.Background(), time.Now())
			assert.True(t, errors.Is(err, ErrUpstream), "got %v", err)
			assert.Equal(t, tt.hits, atomic.LoadInt32(&hits))
		})
	}
}

func TestService_Day_CachesAndPersists(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)
	st := newMemTimetables()
	c := &clock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}

	s, err := NewService(testConfig(srv.URL), st, cachestore.NewMemory(time.Minute), WithClock(c.now))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := s.Today(ctx)
	require.NoError(t, err)
	second, err := s.Today(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, st.saves)

	// a fresh cache falls back to the database, not the upstream
	s2, err := NewService(testConfig(srv.URL), st, cachestore.NewMemory(time.Minute), WithClock(c.now))
	require.NoError(t, err)
	third, err := s2.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestService_Day_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute),
		WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	_, err = s.Day(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestNewService_BadTimezone(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Timezone = "Not/AZone"
	_, err := NewService(cfg, newMemTimetables(), cachestore.NewMemory(time.Minute))
	assert.Error(t, err)
}

func TestService_Tick(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)
	c := &clock{t: time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)}
	d := &recordingDispatcher{}
	p := &recordingPublisher{}

	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute),
		WithClock(c.now), WithDispatcher(d), WithPublisher(p))
	require.NoError(t, err)
	ctx := context.Background()

	// first tick primes the state without announcing dhuhr
	got, err := s.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.Current)
	assert.Equal(t, prayer.Dhuhr, *got.Current)
	assert.Empty(t, d.got)

	// still dhuhr
	c.t = time.Date(2026, 10, 18, 15, 29, 0, 0, time.UTC)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.got)

	// asr begins
	c.t = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)
	got, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, prayer.Asr, *got.Current)
	assert.Equal(t, prayer.Maghrib, got.Next)
	assert.Equal(t, "02:30", got.Countdown)

	want := notification.Announcement{Date: "2026-10-18", Key: prayer.Asr, Time: "15:30"}
	assert.Equal(t, []notification.Announcement{want}, d.got)
	assert.Equal(t, []notification.Announcement{want}, p.announcements)
	assert.Len(t, p.statuses, 3)

	// no repeat within the same prayer
	c.t = time.Date(2026, 10, 18, 15, 31, 0, 0, time.UTC)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, d.got, 1)
}

func TestService_Tick_FullQueueAfterShutdown(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)
	c := &clock{t: time.Date(2026, 10, 18, 15, 29, 0, 0, time.UTC)}

	// A pool whose workers never started and whose queue is already full.
	pool := notification.NewWorkerPool(1, nil, nil)
	require.NoError(t, pool.Dispatch(context.Background(), notification.Announcement{Key: prayer.Dhuhr}))

	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute),
		WithClock(c.now), WithDispatcher(pool))
	require.NoError(t, err)

	_, err = s.Tick(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.t = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := s.Tick(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Tick blocked on a full queue after cancel")
	}
}

func TestService_Tick_SkipsUnannouncedAndNewDay(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)
	c := &clock{t: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)}
	d := &recordingDispatcher{}

	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute),
		WithClock(c.now), WithDispatcher(d))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Tick(ctx)
	require.NoError(t, err)

	// sunrise is not in the announce list
	c.t = time.Date(2026, 10, 18, 6, 45, 0, 0, time.UTC)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.got)

	// the first tick on a new day only primes
	c.t = time.Date(2026, 10, 19, 5, 31, 0, 0, time.UTC)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestService_Run_Disabled(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Enabled = false
	s, err := NewService(cfg, newMemTimetables(), cachestore.NewMemory(time.Minute))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a disabled watcher")
	}
}

func TestService_Run_StopsOnCancel(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)
	s, err := NewService(testConfig(srv.URL), newMemTimetables(), cachestore.NewMemory(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
