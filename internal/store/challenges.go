package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"deen-companion-backend/internal/model"
)

func (s *gormStore) ListChallenges(ctx context.Context, userID string) ([]model.Challenge, error) {
	var out []model.Challenge
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Progress = 0
	c.CompletedAt = nil
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// AdvanceChallenge adds step to the challenge's progress. When progress reaches
// the target the challenge is completed and its reward is credited to the
// points ledger in the same transaction. Completed challenges are left untouched.
func (s *gormStore) AdvanceChallenge(ctx context.Context, userID, id string, step int) (*model.Challenge, error) {
	var c model.Challenge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return notFound(err, "challenge")
		}
		if c.Completed() {
			return nil
		}

		// Progress stays within [0, Target]; step is never added past the remainder.
		if step < c.Target-c.Progress {
			c.Progress = max(c.Progress+step, 0)
		} else {
			c.Progress = c.Target
			now := s.now().UTC()
			c.CompletedAt = &now

			if c.RewardPoints > 0 {
				entry := model.PointsEntry{
					UserID: userID,
					Amount: c.RewardPoints,
					Reason: "challenge:" + c.ID,
				}
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("failed to credit reward for challenge %s: %w", c.ID, err)
				}
			}
		}

		if err := tx.Save(&c).Error; err != nil {
			return fmt.Errorf("failed to update challenge %s: %w", c.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) DeleteChallenge(ctx context.Context, userID, id string) error {
	return s.ownedDelete(ctx, &model.Challenge{}, userID, id)
}
