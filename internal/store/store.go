package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"deen-companion-backend/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("record already exists")
	// ErrForbidden is returned when a record belongs to another user.
	ErrForbidden = errors.New("record belongs to another user")
)

// Store defines the interface for all database operations.
type Store interface {
	CreateUser(ctx context.Context, email, hashedPassword string, name *string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	GetTimetable(ctx context.Context, date string) (*model.Timetable, error)
	SaveTimetable(ctx context.Context, t *model.Timetable) error

	ListFavorites(ctx context.Context, userID, kind string) ([]model.Favorite, error)
	AddFavorite(ctx context.Context, f *model.Favorite) (*model.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, id string) error

	ListTodos(ctx context.Context, userID string) ([]model.Todo, error)
	CreateTodo(ctx context.Context, t *model.Todo) error
	UpdateTodo(ctx context.Context, userID, id string, patch TodoPatch) (*model.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) error

	ListChallenges(ctx context.Context, userID string) ([]model.Challenge, error)
	CreateChallenge(ctx context.Context, c *model.Challenge) error
	AdvanceChallenge(ctx context.Context, userID, id string, step int) (*model.Challenge, error)
	DeleteChallenge(ctx context.Context, userID, id string) error

	AddPoints(ctx context.Context, userID string, amount int, reason string) (*model.PointsEntry, error)
	PointsTotal(ctx context.Context, userID string) (int64, error)
	ListPoints(ctx context.Context, userID string, limit int) ([]model.PointsEntry, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsFor(ctx context.Context, prayer string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// compile-time check
var _ Store = (*gormStore)(nil)

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

// notFound maps gorm's not-found error onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// ownedDelete removes the row of type m with id that belongs to userID.
func (s *gormStore) ownedDelete(ctx context.Context, m any, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(m)
	if res.Error != nil {
		return fmt.Errorf("failed to delete %T %s: %w", m, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
