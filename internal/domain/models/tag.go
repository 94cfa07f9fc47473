package models

import (
	"time"
)

// Tag is a global label. Names are unique case-insensitively among
// active tags; deletion is soft so a re-created name restores the row.
type Tag struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Active reports whether the tag has not been soft-deleted.
func (t *Tag) Active() bool {
	return t.DeletedAt == nil
}
