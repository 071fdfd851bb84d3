package model

import (
	"slices"
	"time"
)

// PushSubscription holds the information for a browser or device push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    *string   `gorm:"size:36;index"`
	Prayers   []string  `gorm:"type:text;serializer:json"` // empty means every announced prayer
	CreatedAt time.Time `gorm:"not null"`
}

// Wants reports whether the subscriber asked to be notified for prayer.
func (s PushSubscription) Wants(prayer string) bool {
	return len(s.Prayers) == 0 || slices.Contains(s.Prayers, prayer)
}
