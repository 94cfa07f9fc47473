package models

import (
	"time"
)

type Folder struct {
	ID            string     `json:"id" db:"id"`
	ProjectID     string     `json:"project_id" db:"project_id"`
	ParentID      *string    `json:"parent_id" db:"parent_id"` // NULL = project root
	Name          string     `json:"name" db:"name"`
	Order         float64    `json:"order" db:"sort_order"` // sibling sort key, ascending
	Documentation string     `json:"documentation" db:"documentation"`
	Path          string     `json:"path,omitempty"` // Computed display path, not stored in DB
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Active reports whether the folder has not been soft-deleted.
func (f *Folder) Active() bool {
	return f.DeletedAt == nil
}

// DeleteSummary reports what a cascade folder delete touched, for
// confirmation UI purposes.
type DeleteSummary struct {
	Folders int `json:"folders"`
	Cases   int `json:"cases"`
}
