package model

import "time"

// Challenge is a counted goal, e.g. 1000 tasbeeh in a week. Reaching Target
// completes it and awards RewardPoints once.
type Challenge struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"size:36;not null;index" json:"-"`
	Title        string     `gorm:"size:256;not null" json:"title"`
	Target       int        `gorm:"not null" json:"target"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	RewardPoints int        `gorm:"not null;default:0" json:"reward_points"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

// Completed reports whether the target has been reached.
func (c Challenge) Completed() bool {
	return c.CompletedAt != nil
}
