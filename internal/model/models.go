package model

// All lists every persisted model for migrations.
func All() []any {
	return []any{
		&User{},
		&Timetable{},
		&Favorite{},
		&Todo{},
		&Challenge{},
		&PointsEntry{},
		&PushSubscription{},
	}
}
