// Package verse picks and fetches the verse of the day.
package verse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"deen-companion-backend/config"
	"deen-companion-backend/internal/cachestore"
)

// TotalAyahs is the number of verses in the Quran.
const TotalAyahs = 6236

// ErrUpstream wraps failures of the Quran text API.
var ErrUpstream = errors.New("verse upstream failed")

// Verse is one ayah with its translation.
type Verse struct {
	Date          string `json:"date"`
	Number        int    `json:"number"`
	Text          string `json:"text"`
	Surah         int    `json:"surah"`
	SurahName     string `json:"surah_name"`
	NumberInSurah int    `json:"number_in_surah"`
	Edition       string `json:"edition"`
}

type ayahResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Number        int    `json:"number"`
		Text          string `json:"text"`
		NumberInSurah int    `json:"numberInSurah"`
		Surah         struct {
			Number      int    `json:"number"`
			EnglishName string `json:"englishName"`
		} `json:"surah"`
		Edition struct {
			Identifier string `json:"identifier"`
		} `json:"edition"`
	} `json:"data"`
}

// Service serves the verse of the day.
type Service struct {
	cfg    config.VerseConfig
	cache  cachestore.Cache
	client *http.Client
	now    func() time.Time
}

// NewService creates a verse service. now supplies the local wall clock.
func NewService(cfg config.VerseConfig, c cachestore.Cache, now func() time.Time) *Service {
	return &Service{
		cfg:    cfg,
		cache:  c,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    now,
	}
}

// NumberFor maps a calendar date to an ayah number in [1, TotalAyahs].
func NumberFor(date string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(date))
	return int(h.Sum32()%TotalAyahs) + 1
}

// Today returns the verse for the current date, fetching it at most once a day.
func (s *Service) Today(ctx context.Context) (Verse, error) {
	now := s.now()
	date := now.Format("2006-01-02")
	key := "verse:" + s.cfg.Edition + ":" + date

	if raw, found, err := s.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("verse cache read failed")
	} else if found {
		var v Verse
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := s.Fetch(ctx, NumberFor(date))
	if err != nil {
		return Verse{}, err
	}
	v.Date = date

	if raw, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, raw, cachestore.UntilEndOfDay(now)); err != nil {
			log.Warn().Err(err).Msg("verse cache write failed")
		}
	}
	return v, nil
}

// Fetch downloads ayah n in the configured edition.
func (s *Service) Fetch(ctx context.Context, n int) (Verse, error) {
	endpoint := fmt.Sprintf("%s/ayah/%d/%s", s.cfg.BaseURL, n, s.cfg.Edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Verse{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verse{}, fmt.Errorf("%w: received non-200 status code: %d", ErrUpstream, resp.StatusCode)
	}

	var body ayahResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verse{}, fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	if body.Code != http.StatusOK || body.Data.Text == "" {
		return Verse{}, fmt.Errorf("%w: api returned code %d (%s)", ErrUpstream, body.Code, body.Status)
	}

	log.Debug().Int("ayah", n).Str("edition", s.cfg.Edition).Msg("fetched verse")
	return Verse{
		Number:        body.Data.Number,
		Text:          body.Data.Text,
		Surah:         body.Data.Surah.Number,
		SurahName:     body.Data.Surah.EnglishName,
		NumberInSurah: body.Data.NumberInSurah,
		Edition:       body.Data.Edition.Identifier,
	}, nil
}
