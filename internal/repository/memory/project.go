package memory

import (
	"context"
	"fmt"
	"sort"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// ProjectRepository implements repositories.ProjectRepository over the
// arena.
type ProjectRepository struct {
	store *Store
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(store *Store) repositories.ProjectRepository {
	return &ProjectRepository{store: store}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	for _, p := range r.store.projects {
		if p.OwnerID == project.OwnerID && p.Name == project.Name && p.Active() {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("project %q already exists", project.Name),
				ResourceType: "project",
				ResourceID:   p.ID,
			}
		}
	}
	out := *project
	r.store.projects[project.ID] = &out
	return nil
}

// GetByID retrieves an active project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	p, ok := r.store.projects[id]
	if !ok || !p.Active() {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// List retrieves all active projects for an owner, most recently
// updated first
func (r *ProjectRepository) List(ctx context.Context, ownerID string) ([]models.Project, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.Project
	for _, p := range r.store.projects {
		if p.OwnerID == ownerID && p.Active() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
