package model

import "time"

// PointsEntry is one row of a user's points ledger.
type PointsEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reason    string    `gorm:"size:128;not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
