package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"deen-companion-backend/internal/model"
)

// GetTimetable returns the stored timetable for date (YYYY-MM-DD).
func (s *gormStore) GetTimetable(ctx context.Context, date string) (*model.Timetable, error) {
	var t model.Timetable
	if err := s.db.WithContext(ctx).Where("date = ?", date).First(&t).Error; err != nil {
		return nil, notFound(err, "timetable")
	}
	return &t, nil
}

// SaveTimetable inserts or replaces the timetable for t.Date.
func (s *gormStore) SaveTimetable(ctx context.Context, t *model.Timetable) error {
	if t.FetchedAt.IsZero() {
		t.FetchedAt = s.now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"fajr", "sunrise", "dhuhr", "asr", "maghrib", "isha", "hijri_date", "fetched_at"}),
	}).Create(t).Error
	if err != nil {
		return fmt.Errorf("failed to save timetable for %s: %w", t.Date, err)
	}
	return nil
}
