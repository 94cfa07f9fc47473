package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// SharedStepRepository implements repositories.SharedStepRepository
// over the arena.
type SharedStepRepository struct {
	store *Store
}

// NewSharedStepRepository creates a new shared step repository
func NewSharedStepRepository(store *Store) repositories.SharedStepRepository {
	return &SharedStepRepository{store: store}
}

// Create creates a new group
func (r *SharedStepRepository) Create(ctx context.Context, group *models.SharedStepGroup) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if _, ok := r.store.groups[group.ID]; ok {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("shared step group %s already exists", group.ID),
			ResourceType: "shared_step_group",
			ResourceID:   group.ID,
		}
	}
	r.store.groups[group.ID] = cloneGroup(group)
	return nil
}

// GetByID retrieves an active group by ID
func (r *SharedStepRepository) GetByID(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	g, ok := r.store.groups[id]
	if !ok || g.ProjectID != projectID || !g.Active() {
		return nil, fmt.Errorf("shared step group %s: %w", id, domain.ErrNotFound)
	}
	return cloneGroup(g), nil
}

// Update persists name and step list changes
func (r *SharedStepRepository) Update(ctx context.Context, group *models.SharedStepGroup) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	existing, ok := r.store.groups[group.ID]
	if !ok || existing.ProjectID != group.ProjectID {
		return fmt.Errorf("shared step group %s: %w", group.ID, domain.ErrNotFound)
	}
	r.store.groups[group.ID] = cloneGroup(group)
	return nil
}

// SoftDelete marks the group deleted
func (r *SharedStepRepository) SoftDelete(ctx context.Context, id, projectID string, at time.Time) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	g, ok := r.store.groups[id]
	if !ok || g.ProjectID != projectID || !g.Active() {
		return fmt.Errorf("shared step group %s: %w", id, domain.ErrNotFound)
	}
	when := at
	g.DeletedAt = &when
	g.UpdatedAt = at
	return nil
}

// ListByProject lists active groups in a project ordered by name
func (r *SharedStepRepository) ListByProject(ctx context.Context, projectID string) ([]models.SharedStepGroup, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.SharedStepGroup
	for _, g := range r.store.groups {
		if g.ProjectID == projectID && g.Active() {
			out = append(out, *cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
