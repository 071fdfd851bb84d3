package internal

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/api"
	"deen-companion-backend/internal/auth"
	"deen-companion-backend/internal/cachestore"
	"deen-companion-backend/internal/db"
	"deen-companion-backend/internal/notification"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/store"
	"deen-companion-backend/internal/timings"
	"deen-companion-backend/internal/verse"
)

const aladhanBody = `{"code":200,"status":"OK","data":{
  "timings":{"Fajr":"05:30 (BST)","Sunrise":"06:45 (BST)","Dhuhr":"12:15 (BST)","Asr":"15:30 (BST)","Maghrib":"18:00 (BST)","Isha":"19:30 (BST)"},
  "date":{"readable":"18 Oct 2026","hijri":{"day":"07","year":"1448","month":{"number":5,"en":"Jumada al-Ula"}}}}}`

const ayahBody = `{"code":200,"status":"OK","data":{"number":1,"text":"In the name of Allah, the Entirely Merciful, the Especially Merciful.",
  "numberInSurah":1,"surah":{"number":1,"englishName":"Al-Faatiha"},"edition":{"identifier":"en.sahih"}}}`

// pushServer records which subscription endpoints received a notification.
type pushServer struct {
	*httptest.Server
	mu       sync.Mutex
	received []string
	notify   chan string
}

func newPushServer(t *testing.T) *pushServer {
	ps := &pushServer{notify: make(chan string, 8)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.received = append(ps.received, r.URL.Path)
		ps.mu.Unlock()
		ps.notify <- r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) paths() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.received...)
}

// browserKeys returns a subscriber's p256dh and auth values as a browser would report them.
func browserKeys(t *testing.T) (string, string) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestPrayerAnnouncementLifecycle runs a user through signup and subscription,
// then walks the watcher across the start of Asr and checks that only the
// subscriber who asked for Asr is notified.
func TestPrayerAnnouncementLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// --- Test Setup ---

	var upstreamCalls int
	var upstreamMu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamMu.Lock()
		upstreamCalls++
		upstreamMu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/timings/"):
			_, _ = w.Write([]byte(aladhanBody))
		case strings.HasPrefix(r.URL.Path, "/ayah/"):
			_, _ = w.Write([]byte(ayahBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	appStore := store.NewGormStore(gormDB)
	cache := cachestore.NewMemory(time.Minute)

	vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		Subscriber:      "mailto:test@example.com",
		TTL:             60,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := notification.NewWorkerPool(2, appStore, webpushOptions)
	pool.Start(ctx)

	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 15, 29, 0, 0, loc)
	clock := func() time.Time { return now }

	prayerSvc, err := timings.NewService(config.PrayerConfig{
		Enabled:   true,
		BaseURL:   upstream.URL,
		Latitude:  51.5074,
		Longitude: -0.1278,
		Method:    2,
		Timezone:  "Europe/London",
		Interval:  time.Second,
		Announce:  []string{"fajr", "dhuhr", "asr", "maghrib", "isha"},
	}, appStore, cache, timings.WithClock(clock), timings.WithDispatcher(pool))
	require.NoError(t, err)

	verseSvc := verse.NewService(config.VerseConfig{BaseURL: upstream.URL, Edition: "en.sahih"}, cache, prayerSvc.Now)

	issuer, err := auth.NewIssuer("integration-secret", time.Hour)
	require.NoError(t, err)

	router := api.NewRouter(api.NewHandler(appStore, prayerSvc, verseSvc, issuer, webpushOptions), config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 60,
	}, nil)

	push := newPushServer(t)

	// --- Signup and subscribe ---
	var token string
	t.Run("Signup and subscribe", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": "yusuf@example.com", "password": "bismillah123"}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		token = resp.Token

		p256dh, authSecret := browserKeys(t)
		w = doJSON(t, router, http.MethodPut, "/api/subscriptions", gin.H{
			"endpoint": push.URL + "/push/asr", "p256dh": p256dh, "auth": authSecret, "prayers": []string{"asr"},
		}, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		p256dh, authSecret = browserKeys(t)
		w = doJSON(t, router, http.MethodPut, "/api/subscriptions", gin.H{
			"endpoint": push.URL + "/push/fajr", "p256dh": p256dh, "auth": authSecret, "prayers": []string{"fajr"},
		}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	// --- Timetable is fetched once, persisted and served ---
	t.Run("Today before Asr", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/prayers/today", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Date    string            `json:"date"`
			Hijri   string            `json:"hijri"`
			Timings prayer.DayTimes   `json:"timings"`
			Status  prayer.Derivation `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "2026-10-18", resp.Date)
		assert.Equal(t, "07 Jumada al-Ula 1448 AH", resp.Hijri)
		assert.Equal(t, "15:30", resp.Timings.Asr, "timezone suffix should be stripped")
		require.NotNil(t, resp.Status.Current)
		assert.Equal(t, prayer.Dhuhr, *resp.Status.Current)
		assert.Equal(t, prayer.Asr, resp.Status.Next)
		assert.Equal(t, "00:01", resp.Status.Countdown)

		stored, err := appStore.GetTimetable(context.Background(), "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, "18:00", stored.Maghrib)
	})

	// --- Watcher announces Asr ---
	t.Run("Watcher announces Asr", func(t *testing.T) {
		_, err := prayerSvc.Tick(ctx)
		require.NoError(t, err)

		now = time.Date(2026, 10, 18, 15, 30, 0, 0, loc)
		d, err := prayerSvc.Tick(ctx)
		require.NoError(t, err)
		require.NotNil(t, d.Current)
		assert.Equal(t, prayer.Asr, *d.Current)

		select {
		case path := <-push.notify:
			assert.Equal(t, "/push/asr", path)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for the Asr push notification")
		}

		// give a wrongly addressed notification a chance to arrive
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, []string{"/push/asr"}, push.paths())
	})

	t.Run("Verse of the day", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/verse/today", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Al-Faatiha")
	})

	upstreamMu.Lock()
	defer upstreamMu.Unlock()
	assert.Equal(t, 2, upstreamCalls, "one timetable fetch and one verse fetch")
}
