package models

import "time"

// Model is a persisted row. [LibraryTrack] is the only one so far.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the CRUD surface shared by repositories of [Model] rows.
//
// List criteria are repository specific; unknown keys are ignored. Delete may be a soft delete.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
