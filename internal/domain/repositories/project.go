package repositories

import (
	"context"

	"quiver/internal/domain/models"
)

// ProjectRepository defines data access operations for projects.
type ProjectRepository interface {
	// Create creates a new project
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves an active project by ID
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// List retrieves all active projects for an owner, most recently
	// updated first
	List(ctx context.Context, ownerID string) ([]models.Project, error)
}
