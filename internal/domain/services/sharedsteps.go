package services

import (
	"context"

	"quiver/internal/domain/models"
)

// SharedStepService owns reusable step groups referenced by cases.
type SharedStepService interface {
	// CreateGroup creates a group with an ordered step list
	CreateGroup(ctx context.Context, req *CreateGroupRequest) (*models.SharedStepGroup, error)

	// UpdateGroup replaces the group's name and/or steps
	UpdateGroup(ctx context.Context, req *UpdateGroupRequest) (*models.SharedStepGroup, error)

	// DeleteGroup soft-deletes the group without touching referencing
	// cases or their history
	DeleteGroup(ctx context.Context, req *DeleteGroupRequest) error

	// GetGroup retrieves an active group
	GetGroup(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error)

	// ListGroups lists active groups in a project
	ListGroups(ctx context.Context, projectID string) ([]models.SharedStepGroup, error)

	// Resolve expands shared-group references in a step list for
	// display. References to deleted or unknown groups are kept as-is.
	Resolve(ctx context.Context, projectID string, steps []models.Step) ([]models.Step, error)
}

// CreateGroupRequest creates a shared step group
type CreateGroupRequest struct {
	ActorID   string        `json:"actor_id"`
	ProjectID string        `json:"project_id"`
	Name      string        `json:"name"`
	Steps     []models.Step `json:"steps"`
}

// UpdateGroupRequest edits a shared step group
type UpdateGroupRequest struct {
	ActorID   string         `json:"actor_id"`
	ProjectID string         `json:"project_id"`
	GroupID   string         `json:"group_id"`
	Name      *string        `json:"name,omitempty"`
	Steps     *[]models.Step `json:"steps,omitempty"`
}

// DeleteGroupRequest soft-deletes a shared step group
type DeleteGroupRequest struct {
	ActorID   string `json:"actor_id"`
	ProjectID string `json:"project_id"`
	GroupID   string `json:"group_id"`
}
