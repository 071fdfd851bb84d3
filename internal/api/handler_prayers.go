package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"deen-companion-backend/internal/parse"
	"deen-companion-backend/internal/prayer"
	"deen-companion-backend/internal/timings"
)

const maxCalendarDays = 31

// todayResponse is the body of GET /api/prayers/today.
type todayResponse struct {
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri,omitempty"`
	Timings prayer.DayTimes   `json:"timings"`
	Status  prayer.Derivation `json:"status"`
}

// GetPrayersToday returns today's timetable with the derived status at the
// local wall clock, or at ?at=HH:MM when given.
func (h *Handler) GetPrayersToday(c *gin.Context) {
	now := h.prayers.Now()
	minutes := prayer.MinutesOf(now)

	if at := c.Query("at"); at != "" {
		clk, err := parse.ParseClock(at)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'at' time, use HH:MM"})
			return
		}
		minutes = clk.Minutes()
	}

	day, err := h.prayers.Day(c.Request.Context(), now)
	if err != nil {
		upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, todayResponse{
		Date:    day.Date,
		Hijri:   day.Hijri,
		Timings: day.Times,
		Status:  prayer.Derive(day.Times, minutes),
	})
}

// GetPrayersForDay handles GET /api/prayers/day/:date.
func (h *Handler) GetPrayersForDay(c *gin.Context) {
	date, err := time.ParseInLocation(timings.DateLayout, c.Param("date"), h.prayers.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		return
	}

	day, err := h.prayers.Day(c.Request.Context(), date)
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// GetPrayerCalendar exports the next ?days=N days (default 7) as an iCalendar feed.
func (h *Handler) GetPrayerCalendar(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxCalendarDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("days must be between 1 and %d", maxCalendarDays)})
			return
		}
		days = n
	}

	now := h.prayers.Now()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//deen-companion//prayer times//EN")
	cal.Props.SetText("X-WR-CALNAME", "Prayer times")

	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, i)
		day, err := h.prayers.Day(c.Request.Context(), date)
		if err != nil {
			upstreamError(c, err)
			return
		}
		for _, key := range prayer.Sequence {
			if ev := prayerEvent(day, key, date.Location(), now); ev != nil {
				cal.Children = append(cal.Children, ev.Component)
			}
		}
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="prayer-times.ics"`)
	c.Status(http.StatusOK)
	if err := ical.NewEncoder(c.Writer).Encode(cal); err != nil {
		log.Error().Err(err).Msg("failed to encode prayer calendar")
	}
}

// prayerEvent builds the event for key on day, or nil when its time is unusable.
func prayerEvent(day timings.Day, key prayer.Key, loc *time.Location, stamp time.Time) *ical.Event {
	clk, err := parse.ParseClock(day.Times.At(key))
	if err != nil {
		return nil
	}
	date, err := time.ParseInLocation(timings.DateLayout, day.Date, loc)
	if err != nil {
		return nil
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), clk.Hour, clk.Minute, 0, 0, loc)

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@deen-companion", day.Date, key))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, start)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(15*time.Minute))
	ev.Props.SetText(ical.PropSummary, key.Title())
	return ev
}

func upstreamError(c *gin.Context, err error) {
	log.Error().Err(err).Msg("failed to load prayer timetable")
	c.JSON(http.StatusBadGateway, gin.H{"error": "prayer times are unavailable"})
}
