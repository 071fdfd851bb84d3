package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"deen-companion-backend/internal/model"
)

// TodoPatch carries the fields of a partial todo update. Nil fields are left unchanged.
type TodoPatch struct {
	Title   *string
	Done    *bool
	DueDate *string
}

func (s *gormStore) ListTodos(ctx context.Context, userID string) ([]model.Todo, error) {
	var out []model.Todo
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("done ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateTodo(ctx context.Context, t *model.Todo) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateTodo(ctx context.Context, userID, id string, patch TodoPatch) (*model.Todo, error) {
	var t model.Todo
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, notFound(err, "todo")
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Done != nil {
		t.Done = *patch.Done
	}
	if patch.DueDate != nil {
		if *patch.DueDate == "" {
			t.DueDate = nil
		} else {
			t.DueDate = patch.DueDate
		}
	}

	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to update todo %s: %w", id, err)
	}
	return &t, nil
}

func (s *gormStore) DeleteTodo(ctx context.Context, userID, id string) error {
	return s.ownedDelete(ctx, &model.Todo{}, userID, id)
}
