package repositories

import (
	"context"
	"time"

	"quiver/internal/domain/models"
)

// CaseRepository defines data access operations for test cases and
// their version chains. Reads exclude soft-deleted rows; version rows
// are append-only and survive case deletion.
type CaseRepository interface {
	// Create inserts the case together with its version 1 snapshot
	Create(ctx context.Context, c *models.TestCase, v1 *models.Version) error

	// GetByID retrieves an active case with tags, issues and fields loaded
	GetByID(ctx context.Context, id, projectID string) (*models.TestCase, error)

	// Update persists bookkeeping state (folder, order, tags, issues,
	// current content copy). Never touches version rows.
	Update(ctx context.Context, c *models.TestCase) error

	// AdvanceVersion appends the version snapshot and moves
	// current_version from expected to v.Number in one atomic step.
	// Fails with ErrConcurrent when the stored current_version no
	// longer equals expected.
	AdvanceVersion(ctx context.Context, c *models.TestCase, expected int, v *models.Version) error

	// SoftDelete marks the case deleted, leaving version rows intact
	SoftDelete(ctx context.Context, id, projectID string, at time.Time) error

	// SoftDeleteByFolders marks every active case in the given folders
	// deleted, returning how many were affected. Used by the folder
	// cascade delete inside its transaction.
	SoftDeleteByFolders(ctx context.Context, projectID string, folderIDs []string, at time.Time) (int, error)

	// ListByFolder lists active cases in a folder ordered by sort key.
	// Nil folderID lists the project root level.
	ListByFolder(ctx context.Context, folderID *string, projectID string) ([]models.TestCase, error)

	// ListByProject lists all active cases in a project with tags,
	// issues and fields loaded. The view engine's read path.
	ListByProject(ctx context.Context, projectID string) ([]models.TestCase, error)
}

// VersionRepository reads immutable version snapshots.
type VersionRepository interface {
	// Get retrieves one version by number
	Get(ctx context.Context, caseID string, number int) (*models.Version, error)

	// List retrieves all versions of a case, ascending by number
	List(ctx context.Context, caseID string) ([]models.Version, error)
}
