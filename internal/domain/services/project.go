package services

import (
	"context"

	"quiver/internal/domain/models"
)

// ProjectService owns the top-level tenant scope.
type ProjectService interface {
	// CreateProject creates a project
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*models.Project, error)

	// GetProject retrieves an active project
	GetProject(ctx context.Context, id string) (*models.Project, error)

	// ListProjects lists an owner's active projects
	ListProjects(ctx context.Context, ownerID string) ([]models.Project, error)
}

// CreateProjectRequest creates a project
type CreateProjectRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
}
