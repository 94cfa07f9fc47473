package models

import (
	"time"
)

// SharedStepGroup is an ordered step list referenced by cases via
// Step.SharedGroupID. The reference is weak: deleting a group does not
// cascade into referencing cases or their version history.
type SharedStepGroup struct {
	ID        string     `json:"id" db:"id"`
	ProjectID string     `json:"project_id" db:"project_id"`
	Name      string     `json:"name" db:"name"`
	Steps     []Step     `json:"steps"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Active reports whether the group has not been soft-deleted.
func (g *SharedStepGroup) Active() bool {
	return g.DeletedAt == nil
}
