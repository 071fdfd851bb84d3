package store

import (
	"context"
	"fmt"

	"deen-companion-backend/internal/model"
)

func (s *gormStore) AddPoints(ctx context.Context, userID string, amount int, reason string) (*model.PointsEntry, error) {
	entry := &model.PointsEntry{UserID: userID, Amount: amount, Reason: reason}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to add points: %w", err)
	}
	return entry, nil
}

func (s *gormStore) PointsTotal(ctx context.Context, userID string) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&model.PointsEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

// ListPoints returns the most recent ledger entries, newest first.
func (s *gormStore) ListPoints(ctx context.Context, userID string, limit int) ([]model.PointsEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.PointsEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list points: %w", err)
	}
	return out, nil
}
