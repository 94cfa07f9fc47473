package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quiver/internal/config"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/ident"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type sharedStepService struct {
	groupRepo  repositories.SharedStepRepository
	authorizer services.Authorizer
	logger     *slog.Logger
}

// NewSharedStepService creates a new shared step service
func NewSharedStepService(
	groupRepo repositories.SharedStepRepository,
	authorizer services.Authorizer,
	logger *slog.Logger,
) services.SharedStepService {
	return &sharedStepService{
		groupRepo:  groupRepo,
		authorizer: authorizer,
		logger:     logger,
	}
}

// CreateGroup creates a group with an ordered step list
func (s *sharedStepService) CreateGroup(ctx context.Context, req *services.CreateGroupRequest) (*models.SharedStepGroup, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionCreate, req.ProjectID); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxGroupNameLength)),
	); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	now := time.Now()
	group := &models.SharedStepGroup{
		ID:        ident.NewID(),
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Steps:     append([]models.Step(nil), req.Steps...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}
	s.logger.Info("shared step group created", "id", group.ID, "name", group.Name)
	return group, nil
}

// UpdateGroup replaces the group's name and/or steps
func (s *sharedStepService) UpdateGroup(ctx context.Context, req *services.UpdateGroupRequest) (*models.SharedStepGroup, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.GroupID); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Steps == nil {
		return nil, &domain.ValidationError{Message: "at least one field must be provided"}
	}

	group, err := s.groupRepo.GetByID(ctx, req.GroupID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Steps != nil {
		group.Steps = append([]models.Step(nil), (*req.Steps)...)
	}
	group.UpdatedAt = time.Now()
	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, err
	}
	s.logger.Info("shared step group updated", "id", group.ID)
	return group, nil
}

// DeleteGroup soft-deletes the group. References from cases are weak:
// their steps and version history stay untouched.
func (s *sharedStepService) DeleteGroup(ctx context.Context, req *services.DeleteGroupRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionDelete, req.GroupID); err != nil {
		return err
	}
	if err := s.groupRepo.SoftDelete(ctx, req.GroupID, req.ProjectID, time.Now()); err != nil {
		return err
	}
	s.logger.Info("shared step group deleted", "id", req.GroupID)
	return nil
}

// GetGroup retrieves an active group
func (s *sharedStepService) GetGroup(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error) {
	return s.groupRepo.GetByID(ctx, id, projectID)
}

// ListGroups lists active groups in a project
func (s *sharedStepService) ListGroups(ctx context.Context, projectID string) ([]models.SharedStepGroup, error) {
	return s.groupRepo.ListByProject(ctx, projectID)
}

// Resolve expands shared-group references in a step list for display.
// References that no longer resolve are kept as-is so historical
// versions still render.
func (s *sharedStepService) Resolve(ctx context.Context, projectID string, steps []models.Step) ([]models.Step, error) {
	var out []models.Step
	for _, step := range steps {
		if step.SharedGroupID == nil {
			out = append(out, step)
			continue
		}
		group, err := s.groupRepo.GetByID(ctx, *step.SharedGroupID, projectID)
		if errors.Is(err, domain.ErrNotFound) {
			out = append(out, step) // deleted or unknown group: keep the reference
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, group.Steps...)
	}
	return out, nil
}
