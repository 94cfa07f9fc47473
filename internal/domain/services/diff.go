package services

import (
	"context"

	"quiver/internal/domain/models"
)

// DiffService reads immutable version history and computes field-level
// diffs between adjacent versions.
type DiffService interface {
	// GetVersion retrieves version number n. Fails with NotFoundError
	// outside [1, currentVersion].
	GetVersion(ctx context.Context, caseID string, number int) (*models.Version, error)

	// ListVersions retrieves the full chain, ascending
	ListVersions(ctx context.Context, caseID string) ([]models.Version, error)

	// Diff compares version n against n-1. Fails with NotFoundError
	// for n = 1, which has no predecessor.
	Diff(ctx context.Context, caseID string, number int) ([]models.Change, error)

	// VersionView returns a historical version with the case's current
	// tag and issue state overlaid. Tags and issues are live
	// references, not versioned content.
	VersionView(ctx context.Context, caseID, projectID string, number int) (*VersionView, error)
}

// VersionView is a historical snapshot decorated with live references
// for display.
type VersionView struct {
	Version *models.Version   `json:"version"`
	Tags    []string          `json:"tags"`
	Issues  []models.IssueRef `json:"issues"`
}
