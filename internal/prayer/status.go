package prayer

import (
	"fmt"
	"time"

	"deen-companion-backend/internal/parse"
)

const minutesPerDay = 24 * 60

// unresolvedCountdown is reported when the next prayer's time cannot be parsed.
const unresolvedCountdown = "--:--"

// Key identifies one of the six daily prayer times.
type Key string

const (
	Fajr    Key = "fajr"
	Sunrise Key = "sunrise"
	Dhuhr   Key = "dhuhr"
	Asr     Key = "asr"
	Maghrib Key = "maghrib"
	Isha    Key = "isha"
)

// Sequence is the fixed daily order. Isha wraps to the following day's Fajr.
var Sequence = [...]Key{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// Valid reports whether k is one of the six known keys.
func (k Key) Valid() bool {
	return k.index() >= 0
}

// Title is the display name of the prayer, e.g. "Maghrib".
func (k Key) Title() string {
	switch k {
	case Fajr:
		return "Fajr"
	case Sunrise:
		return "Sunrise"
	case Dhuhr:
		return "Dhuhr"
	case Asr:
		return "Asr"
	case Maghrib:
		return "Maghrib"
	case Isha:
		return "Isha"
	}
	return string(k)
}

func (k Key) index() int {
	for i, s := range Sequence {
		if s == k {
			return i
		}
	}
	return -1
}

// DayTimes holds one day's six prayer times as "HH:MM" strings in local time.
type DayTimes struct {
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// At returns the configured time string for k.
func (d DayTimes) At(k Key) string {
	switch k {
	case Fajr:
		return d.Fajr
	case Sunrise:
		return d.Sunrise
	case Dhuhr:
		return d.Dhuhr
	case Asr:
		return d.Asr
	case Maghrib:
		return d.Maghrib
	case Isha:
		return d.Isha
	}
	return ""
}

// StatusTag is the position of a prayer relative to the current one.
type StatusTag string

const (
	StatusCompleted StatusTag = "completed"
	StatusCurrent   StatusTag = "current"
	StatusUpcoming  StatusTag = "upcoming"
)

// Status is one row of a Derivation.
type Status struct {
	Key    Key       `json:"key"`
	Time   string    `json:"time"`
	Status StatusTag `json:"status"`
}

// Derivation is the prayer-window view of a day at a given minute.
// Current is nil before Fajr. Next is always set.
type Derivation struct {
	Prayers   []Status `json:"prayers"`
	Current   *Key     `json:"current"`
	Next      Key      `json:"next"`
	Countdown string   `json:"countdown"`
}

// Derive computes which prayer is current and which is next at now, given
// as minutes since local midnight, along with the countdown to next and the
// positional status of every prayer.
//
// Times that cannot be parsed never become current. If the next prayer's
// time cannot be parsed the countdown is "--:--".
func Derive(today DayTimes, now int) Derivation {
	var (
		minutes  [len(Sequence)]int
		resolved [len(Sequence)]bool
	)
	for i, k := range Sequence {
		c, err := parse.ParseClock(today.At(k))
		if err != nil {
			continue
		}
		minutes[i] = c.Minutes()
		resolved[i] = true
	}

	currentIdx := -1
	for i := len(Sequence) - 1; i >= 0; i-- {
		if resolved[i] && minutes[i] <= now {
			currentIdx = i
			break
		}
	}

	var nextIdx int
	switch {
	case currentIdx < 0:
		// before Fajr: today's Fajr is next
		nextIdx = 0
	case currentIdx == len(Sequence)-1:
		// after Isha: tomorrow's Fajr
		nextIdx = 0
	default:
		nextIdx = currentIdx + 1
	}

	countdown := unresolvedCountdown
	if resolved[nextIdx] {
		diff := minutes[nextIdx] - now
		if diff <= 0 {
			diff += minutesPerDay
		}
		countdown = fmt.Sprintf("%02d:%02d", diff/60, diff%60)
	}

	prayers := make([]Status, len(Sequence))
	for i, k := range Sequence {
		tag := StatusUpcoming
		switch {
		case i == currentIdx:
			tag = StatusCurrent
		case currentIdx >= 0 && i < currentIdx:
			tag = StatusCompleted
		}
		prayers[i] = Status{Key: k, Time: today.At(k), Status: tag}
	}

	var current *Key
	if currentIdx >= 0 {
		k := Sequence[currentIdx]
		current = &k
	}

	return Derivation{
		Prayers:   prayers,
		Current:   current,
		Next:      Sequence[nextIdx],
		Countdown: countdown,
	}
}

// MinutesOf returns the minutes since midnight of t in t's own location.
func MinutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseKeys converts names like "fajr" into Keys, skipping unknown names.
func ParseKeys(names []string) []Key {
	keys := make([]Key, 0, len(names))
	for _, n := range names {
		if k := Key(n); k.Valid() {
			keys = append(keys, k)
		}
	}
	return keys
}
