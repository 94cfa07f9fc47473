package repositories

import (
	"context"

	"quiver/internal/domain/models"
)

// TagRepository defines data access operations for global tags.
type TagRepository interface {
	// Create creates a new tag
	Create(ctx context.Context, tag *models.Tag) error

	// GetByID retrieves an active tag by ID
	GetByID(ctx context.Context, id string) (*models.Tag, error)

	// FindByName retrieves a tag by case-insensitive name, including
	// soft-deleted rows (restoration needs them). Returns nil, nil
	// when no row matches.
	FindByName(ctx context.Context, name string) (*models.Tag, error)

	// Update persists name and deletion state changes
	Update(ctx context.Context, tag *models.Tag) error

	// ListActive lists all active tags ordered by name
	ListActive(ctx context.Context) ([]models.Tag, error)
}
