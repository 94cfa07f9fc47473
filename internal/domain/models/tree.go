package models

import "time"

// FolderNode represents a folder in the project tree with nested
// children and a count of cases directly contained in it.
type FolderNode struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	ParentID  *string       `json:"parent_id"`
	Order     float64       `json:"order"`
	CaseCount int           `json:"case_count"`
	CreatedAt time.Time     `json:"created_at"`
	Folders   []*FolderNode `json:"folders"` // Pointers for proper nesting
}
