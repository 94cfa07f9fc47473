package repositories

import (
	"context"
	"time"

	"quiver/internal/domain/models"
)

// FolderRepository defines data access operations for folders. Reads
// exclude soft-deleted rows.
type FolderRepository interface {
	// Create creates a new folder
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves an active folder by ID
	GetByID(ctx context.Context, id, projectID string) (*models.Folder, error)

	// Update updates a folder (rename, move, reorder, documentation)
	Update(ctx context.Context, folder *models.Folder) error

	// SoftDelete marks the given folders deleted. Called inside the
	// cascade-delete transaction with the whole subtree's id set.
	SoftDelete(ctx context.Context, projectID string, ids []string, at time.Time) error

	// LockProjectTree serializes structural tree changes (move, cascade
	// delete) within a project for the duration of the surrounding
	// transaction. Must be called with a transaction on the context.
	LockProjectTree(ctx context.Context, projectID string) error

	// ListChildren lists active immediate child folders ordered by
	// sort key ascending. Nil folderID lists the project root level.
	ListChildren(ctx context.Context, folderID *string, projectID string) ([]models.Folder, error)

	// ListByProject retrieves all active folders in a project (flat list)
	ListByProject(ctx context.Context, projectID string) ([]models.Folder, error)

	// UpdateOrders rewrites sort keys for a sibling set (renormalization)
	UpdateOrders(ctx context.Context, projectID string, orders map[string]float64) error

	// GetPath computes the display path for a folder
	GetPath(ctx context.Context, folderID *string, projectID string) (string, error)
}
