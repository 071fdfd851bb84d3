package prayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDay = DayTimes{
	Fajr:    "05:30",
	Sunrise: "06:45",
	Dhuhr:   "12:15",
	Asr:     "15:30",
	Maghrib: "18:00",
	Isha:    "19:30",
}

func tags(d Derivation) []StatusTag {
	out := make([]StatusTag, len(d.Prayers))
	for i, p := range d.Prayers {
		out[i] = p.Status
	}
	return out
}

func keyPtr(k Key) *Key { return &k }

func TestDerive_Scenarios(t *testing.T) {
	testCases := []struct {
		name      string
		now       int
		current   *Key
		next      Key
		countdown string
		statuses  []StatusTag
	}{
		{
			name:      "Mid afternoon, Asr is current",
			now:       15*60 + 45,
			current:   keyPtr(Asr),
			next:      Maghrib,
			countdown: "02:15",
			statuses:  []StatusTag{StatusCompleted, StatusCompleted, StatusCompleted, StatusCurrent, StatusUpcoming, StatusUpcoming},
		},
		{
			name:      "After Isha wraps to tomorrow's Fajr",
			now:       20 * 60,
			current:   keyPtr(Isha),
			next:      Fajr,
			countdown: "09:30",
			statuses:  []StatusTag{StatusCompleted, StatusCompleted, StatusCompleted, StatusCompleted, StatusCompleted, StatusCurrent},
		},
		{
			name:      "Before Fajr nothing is current",
			now:       4 * 60,
			current:   nil,
			next:      Fajr,
			countdown: "01:30",
			statuses:  []StatusTag{StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming},
		},
		{
			name:      "Midnight",
			now:       0,
			current:   nil,
			next:      Fajr,
			countdown: "05:30",
			statuses:  []StatusTag{StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming},
		},
		{
			name:      "Exactly at Dhuhr is inclusive",
			now:       12*60 + 15,
			current:   keyPtr(Dhuhr),
			next:      Asr,
			countdown: "03:15",
			statuses:  []StatusTag{StatusCompleted, StatusCompleted, StatusCurrent, StatusUpcoming, StatusUpcoming, StatusUpcoming},
		},
		{
			name:      "Exactly at Fajr",
			now:       5*60 + 30,
			current:   keyPtr(Fajr),
			next:      Sunrise,
			countdown: "01:15",
			statuses:  []StatusTag{StatusCurrent, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming, StatusUpcoming},
		},
		{
			name:      "One minute before midnight",
			now:       23*60 + 59,
			current:   keyPtr(Isha),
			next:      Fajr,
			countdown: "05:31",
			statuses:  []StatusTag{StatusCompleted, StatusCompleted, StatusCompleted, StatusCompleted, StatusCompleted, StatusCurrent},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Derive(sampleDay, tc.now)
			assert.Equal(t, tc.current, d.Current)
			assert.Equal(t, tc.next, d.Next)
			assert.Equal(t, tc.countdown, d.Countdown)
			assert.Equal(t, tc.statuses, tags(d))
		})
	}
}

func TestDerive_PreservesOrderAndTimes(t *testing.T) {
	for now := 0; now < minutesPerDay; now += 17 {
		d := Derive(sampleDay, now)
		require.Len(t, d.Prayers, len(Sequence))
		for i, k := range Sequence {
			assert.Equal(t, k, d.Prayers[i].Key)
			assert.Equal(t, sampleDay.At(k), d.Prayers[i].Time)
		}
	}
}

func TestDerive_AtMostOneCurrentAndPositionalTags(t *testing.T) {
	for now := 0; now < minutesPerDay; now++ {
		d := Derive(sampleDay, now)

		currentIdx := -1
		count := 0
		for i, p := range d.Prayers {
			if p.Status == StatusCurrent {
				currentIdx = i
				count++
			}
		}
		require.LessOrEqual(t, count, 1, "now=%d", now)

		if d.Current == nil {
			assert.Equal(t, -1, currentIdx, "now=%d", now)
			continue
		}
		assert.Equal(t, *d.Current, Sequence[currentIdx])
		for i, p := range d.Prayers {
			switch {
			case i < currentIdx:
				assert.Equal(t, StatusCompleted, p.Status, "now=%d key=%s", now, p.Key)
			case i > currentIdx:
				assert.Equal(t, StatusUpcoming, p.Status, "now=%d key=%s", now, p.Key)
			}
		}
	}
}

func TestDerive_Idempotent(t *testing.T) {
	a := Derive(sampleDay, 945)
	b := Derive(sampleDay, 945)
	assert.Equal(t, a, b)
}

func TestDerive_NextIsNeverEmpty(t *testing.T) {
	for now := 0; now < minutesPerDay; now += 5 {
		d := Derive(sampleDay, now)
		assert.True(t, d.Next.Valid(), "now=%d", now)
		assert.Regexp(t, `^\d{2}:\d{2}$`, d.Countdown)
	}
}

func TestDerive_UnparsableTimes(t *testing.T) {
	day := sampleDay
	day.Maghrib = "not-a-time"

	// Asr is current and the next entry cannot be resolved.
	d := Derive(day, 16*60)
	require.NotNil(t, d.Current)
	assert.Equal(t, Asr, *d.Current)
	assert.Equal(t, Maghrib, d.Next)
	assert.Equal(t, "--:--", d.Countdown)

	// Unresolved entries are skipped when scanning for current.
	d = Derive(day, 18*60+30)
	require.NotNil(t, d.Current)
	assert.Equal(t, Asr, *d.Current)

	d = Derive(DayTimes{}, 600)
	assert.Nil(t, d.Current)
	assert.Equal(t, Fajr, d.Next)
	assert.Equal(t, "--:--", d.Countdown)
}

func TestDerive_TimezoneSuffix(t *testing.T) {
	day := DayTimes{
		Fajr:    "05:30 (BST)",
		Sunrise: "06:45 (BST)",
		Dhuhr:   "12:15 (BST)",
		Asr:     "15:30 (BST)",
		Maghrib: "18:00 (BST)",
		Isha:    "19:30 (BST)",
	}
	d := Derive(day, 945)
	require.NotNil(t, d.Current)
	assert.Equal(t, Asr, *d.Current)
	assert.Equal(t, "02:15", d.Countdown)
}

func TestMinutesOf(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC).In(loc)
	assert.Equal(t, 15*60, MinutesOf(ts))
	assert.Equal(t, 0, MinutesOf(time.Date(2026, 1, 1, 0, 0, 59, 0, time.UTC)))
}

func TestKey(t *testing.T) {
	assert.True(t, Maghrib.Valid())
	assert.False(t, Key("tahajjud").Valid())
	assert.Equal(t, "Maghrib", Maghrib.Title())
	assert.Equal(t, []Key{Fajr, Isha}, ParseKeys([]string{"fajr", "bogus", "isha"}))
}
