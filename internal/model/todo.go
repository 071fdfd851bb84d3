package model

import "time"

// Todo is a personal task, e.g. "read Surah Al-Kahf".
type Todo struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"-"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Done      bool      `gorm:"not null;default:false" json:"done"`
	DueDate   *string   `gorm:"size:10" json:"due_date"` // YYYY-MM-DD
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
