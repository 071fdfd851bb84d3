package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deen-companion-backend/internal/model"
)

// UpsertSubscription creates or replaces the subscription keyed by its endpoint.
// An endpoint linked to a user can only be replaced by that user; anonymous
// updates of an unowned endpoint leave user_id untouched.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PushSubscription
		err := tx.Where("endpoint = ?", sub.Endpoint).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case !ownedBy(existing.UserID, sub.UserID):
			return ErrForbidden
		}

		columns := []string{"p256dh", "auth", "prayers"}
		if sub.UserID != nil {
			columns = append(columns, "user_id")
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(sub).Error
	})
	if errors.Is(err, ErrForbidden) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// ownedBy reports whether caller may modify a subscription linked to owner.
// Unowned subscriptions may be modified by anyone.
func ownedBy(owner, caller *string) bool {
	if owner == nil {
		return true
	}
	return caller != nil && *caller == *owner
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).First(&sub).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	res := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SubscriptionsFor returns every subscription that wants notifications for
// prayer: those with an empty prayer list and those naming it.
func (s *gormStore) SubscriptionsFor(ctx context.Context, prayer string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Where("prayers IS NULL OR prayers IN ?", []string{"", "null", "[]"}).
		Or("prayers LIKE ?", `%"`+prayer+`"%`).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
