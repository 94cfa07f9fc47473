package service

import (
	"context"
	"log/slog"
	"time"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/ident"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type projectService struct {
	projectRepo repositories.ProjectRepository
	authorizer  services.Authorizer
	logger      *slog.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	authorizer services.Authorizer,
	logger *slog.Logger,
) services.ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		authorizer:  authorizer,
		logger:      logger,
	}
}

// CreateProject creates a project owned by the actor
func (s *projectService) CreateProject(ctx context.Context, req *services.CreateProjectRequest) (*models.Project, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionCreate, "projects"); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 200)),
	); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	now := time.Now()
	project := &models.Project{
		ID:        ident.NewID(),
		OwnerID:   req.ActorID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "id", project.ID, "name", project.Name)
	return project, nil
}

// GetProject retrieves an active project
func (s *projectService) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// ListProjects lists an owner's active projects
func (s *projectService) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	return s.projectRepo.List(ctx, ownerID)
}
