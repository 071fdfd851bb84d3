package model

import "time"

// FavoriteKinds lists what a user can bookmark.
var FavoriteKinds = []string{"reciter", "surah", "verse", "zikr"}

// Favorite is a bookmarked reciter, surah, verse or zikr.
type Favorite struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_favorite_ref" json:"-"`
	Kind      string    `gorm:"size:16;not null;uniqueIndex:idx_favorite_ref" json:"kind"`
	Ref       string    `gorm:"size:128;not null;uniqueIndex:idx_favorite_ref" json:"ref"`
	Label     string    `gorm:"size:256" json:"label"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
