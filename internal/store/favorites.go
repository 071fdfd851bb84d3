package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"deen-companion-backend/internal/model"
)

// ListFavorites returns the user's favorites, newest first. An empty kind lists all kinds.
func (s *gormStore) ListFavorites(ctx context.Context, userID, kind string) ([]model.Favorite, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []model.Favorite
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return out, nil
}

// AddFavorite stores f unless the user already bookmarked the same kind and ref,
// in which case the existing row is returned.
func (s *gormStore) AddFavorite(ctx context.Context, f *model.Favorite) (*model.Favorite, error) {
	var existing model.Favorite
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND ref = ?", f.UserID, f.Kind, f.Ref).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err = notFound(err, "favorite"); !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return f, nil
}

func (s *gormStore) RemoveFavorite(ctx context.Context, userID, id string) error {
	return s.ownedDelete(ctx, &model.Favorite{}, userID, id)
}
