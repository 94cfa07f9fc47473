package services

import (
	"context"

	"quiver/internal/domain/models"
)

// ViewService computes grouped counts and the filtered, sorted,
// paginated case list for a view dimension. Read-only; tolerates
// read-committed staleness.
type ViewService interface {
	// Query runs the full pipeline: scope, bucket selection, search,
	// column filters, sort, paginate.
	Query(ctx context.Context, q *models.ViewQuery) (*models.ViewPage, error)

	// HasData reports whether any active case in the project has a
	// value for the dimension. Dimensions without data are hidden from
	// the UI surface entirely.
	HasData(ctx context.Context, projectID string, d models.Dimension) (bool, error)

	// Dimensions lists the selectable dimensions for a project: the
	// built-in axes plus one per custom field, filtered by HasData.
	Dimensions(ctx context.Context, projectID string) ([]models.Dimension, error)
}
