package services

import (
	"context"

	"quiver/internal/domain/models"
)

// FolderService owns hierarchical containment of folders and validates
// structural invariants.
type FolderService interface {
	// CreateFolder creates a folder, appended after its new siblings
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)

	// UpdateFolder renames a folder or edits its documentation
	UpdateFolder(ctx context.Context, req *UpdateFolderRequest) (*models.Folder, error)

	// MoveFolder re-parents and/or reorders a folder. Fails with
	// CycleError when the target parent is the folder itself or any of
	// its descendants.
	MoveFolder(ctx context.Context, req *MoveFolderRequest) (*models.Folder, error)

	// DeleteFolder soft-deletes the folder and, transactionally, every
	// descendant folder and contained case. The summary is
	// informational; the operation does not wait on acknowledgement.
	DeleteFolder(ctx context.Context, req *DeleteFolderRequest) (*models.DeleteSummary, error)

	// GetFolder retrieves a folder with its computed path
	GetFolder(ctx context.Context, id, projectID string) (*models.Folder, error)

	// ListChildren lists active child folders and cases, order ascending.
	// Nil folderID lists the project root level.
	ListChildren(ctx context.Context, folderID *string, projectID string) (*FolderContents, error)

	// Tree returns the project's full active folder hierarchy with
	// per-folder case counts
	Tree(ctx context.Context, projectID string) ([]*models.FolderNode, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	ActorID       string  `json:"actor_id"`
	ProjectID     string  `json:"project_id"`
	ParentID      *string `json:"parent_id,omitempty"` // nil = project root
	Name          string  `json:"name"`
	Documentation string  `json:"documentation,omitempty"`
}

// UpdateFolderRequest represents a rename / documentation edit
type UpdateFolderRequest struct {
	ActorID       string  `json:"actor_id"`
	ProjectID     string  `json:"project_id"`
	FolderID      string  `json:"folder_id"`
	Name          *string `json:"name,omitempty"`
	Documentation *string `json:"documentation,omitempty"`
}

// MoveFolderRequest re-parents a folder and places it at Position among
// its new siblings (0 = first; values past the end append).
type MoveFolderRequest struct {
	ActorID     string  `json:"actor_id"`
	ProjectID   string  `json:"project_id"`
	FolderID    string  `json:"folder_id"`
	NewParentID *string `json:"new_parent_id,omitempty"` // nil = project root
	Position    int     `json:"position"`
}

// DeleteFolderRequest represents a cascade folder delete
type DeleteFolderRequest struct {
	ActorID   string `json:"actor_id"`
	ProjectID string `json:"project_id"`
	FolderID  string `json:"folder_id"`
}

// FolderContents represents a folder level with its children
type FolderContents struct {
	Folder  *models.Folder    `json:"folder,omitempty"` // nil for root
	Folders []models.Folder   `json:"folders"`
	Cases   []models.TestCase `json:"cases"`
}
