package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// TagRepository implements repositories.TagRepository over the arena.
type TagRepository struct {
	store *Store
}

// NewTagRepository creates a new tag repository
func NewTagRepository(store *Store) repositories.TagRepository {
	return &TagRepository{store: store}
}

// Create creates a new tag
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if _, ok := r.store.tags[tag.ID]; ok {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("tag %s already exists", tag.ID),
			ResourceType: "tag",
			ResourceID:   tag.ID,
		}
	}
	r.store.tags[tag.ID] = cloneTag(tag)
	return nil
}

// GetByID retrieves an active tag by ID
func (r *TagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	t, ok := r.store.tags[id]
	if !ok || !t.Active() {
		return nil, fmt.Errorf("tag %s: %w", id, domain.ErrNotFound)
	}
	return cloneTag(t), nil
}

// FindByName retrieves a tag by case-insensitive name, including
// soft-deleted rows. Active rows win when both exist for a name.
func (r *TagRepository) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	lower := strings.ToLower(name)
	var deleted *models.Tag
	for _, t := range r.store.tags {
		if strings.ToLower(t.Name) != lower {
			continue
		}
		if t.Active() {
			return cloneTag(t), nil
		}
		deleted = t
	}
	if deleted != nil {
		return cloneTag(deleted), nil
	}
	return nil, nil
}

// Update persists name and deletion state changes
func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if _, ok := r.store.tags[tag.ID]; !ok {
		return fmt.Errorf("tag %s: %w", tag.ID, domain.ErrNotFound)
	}
	r.store.tags[tag.ID] = cloneTag(tag)
	return nil
}

// ListActive lists all active tags ordered by name
func (r *TagRepository) ListActive(ctx context.Context) ([]models.Tag, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.Tag
	for _, t := range r.store.tags {
		if t.Active() {
			out = append(out, *cloneTag(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
