package model

import "time"

// Timetable is a cached copy of one day's prayer times for the configured location.
type Timetable struct {
	Date      string    `gorm:"primaryKey;size:10"` // YYYY-MM-DD
	Fajr      string    `gorm:"size:5;not null"`
	Sunrise   string    `gorm:"size:5;not null"`
	Dhuhr     string    `gorm:"size:5;not null"`
	Asr       string    `gorm:"size:5;not null"`
	Maghrib   string    `gorm:"size:5;not null"`
	Isha      string    `gorm:"size:5;not null"`
	HijriDate string    `gorm:"size:64"`
	FetchedAt time.Time `gorm:"not null"`
}
