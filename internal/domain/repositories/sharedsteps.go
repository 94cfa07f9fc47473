package repositories

import (
	"context"
	"time"

	"quiver/internal/domain/models"
)

// SharedStepRepository defines data access operations for shared step
// groups.
type SharedStepRepository interface {
	// Create creates a new group
	Create(ctx context.Context, group *models.SharedStepGroup) error

	// GetByID retrieves an active group by ID
	GetByID(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error)

	// Update persists name and step list changes
	Update(ctx context.Context, group *models.SharedStepGroup) error

	// SoftDelete marks the group deleted. Referencing cases keep their
	// references; resolution simply fails for deleted groups.
	SoftDelete(ctx context.Context, id, projectID string, at time.Time) error

	// ListByProject lists active groups in a project ordered by name
	ListByProject(ctx context.Context, projectID string) ([]models.SharedStepGroup, error)
}
