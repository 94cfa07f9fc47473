package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// FolderRepository implements repositories.FolderRepository over the arena.
type FolderRepository struct {
	store *Store
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(store *Store) repositories.FolderRepository {
	return &FolderRepository{store: store}
}

// Create creates a new folder
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if _, ok := r.store.folders[folder.ID]; ok {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %s already exists", folder.ID),
			ResourceType: "folder",
			ResourceID:   folder.ID,
		}
	}
	r.store.folders[folder.ID] = cloneFolder(folder)
	return nil
}

// GetByID retrieves an active folder by ID
func (r *FolderRepository) GetByID(ctx context.Context, id, projectID string) (*models.Folder, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	f, ok := r.store.folders[id]
	if !ok || f.ProjectID != projectID || !f.Active() {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return cloneFolder(f), nil
}

// Update updates a folder
func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	existing, ok := r.store.folders[folder.ID]
	if !ok || existing.ProjectID != folder.ProjectID {
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
	}
	r.store.folders[folder.ID] = cloneFolder(folder)
	return nil
}

// SoftDelete marks the given folders deleted
func (r *FolderRepository) SoftDelete(ctx context.Context, projectID string, ids []string, at time.Time) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	for _, id := range ids {
		f, ok := r.store.folders[id]
		if !ok || f.ProjectID != projectID {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		if f.Active() {
			when := at
			f.DeletedAt = &when
			f.UpdatedAt = at
		}
	}
	return nil
}

// LockProjectTree is a no-op: the store mutex already serializes
// whole transactions, so structural changes cannot interleave.
func (r *FolderRepository) LockProjectTree(ctx context.Context, projectID string) error {
	return nil
}

// ListChildren lists active immediate child folders, order ascending
func (r *FolderRepository) ListChildren(ctx context.Context, folderID *string, projectID string) ([]models.Folder, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.Folder
	for _, f := range r.store.folders {
		if f.ProjectID != projectID || !f.Active() {
			continue
		}
		if !sameParent(f.ParentID, folderID) {
			continue
		}
		out = append(out, *cloneFolder(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// ListByProject retrieves all active folders in a project (flat list)
func (r *FolderRepository) ListByProject(ctx context.Context, projectID string) ([]models.Folder, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.Folder
	for _, f := range r.store.folders {
		if f.ProjectID == projectID && f.Active() {
			out = append(out, *cloneFolder(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateOrders rewrites sort keys for a sibling set
func (r *FolderRepository) UpdateOrders(ctx context.Context, projectID string, orders map[string]float64) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	for id, order := range orders {
		f, ok := r.store.folders[id]
		if !ok || f.ProjectID != projectID {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		f.Order = order
	}
	return nil
}

// GetPath computes the display path by walking parent links
func (r *FolderRepository) GetPath(ctx context.Context, folderID *string, projectID string) (string, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if folderID == nil {
		return "", nil
	}
	path := ""
	currentID := *folderID
	// Bounded walk: the arena can't hold a longer chain than it has folders.
	for range r.store.folders {
		f, ok := r.store.folders[currentID]
		if !ok || f.ProjectID != projectID {
			return "", fmt.Errorf("folder %s: %w", currentID, domain.ErrNotFound)
		}
		if path == "" {
			path = f.Name
		} else {
			path = f.Name + "/" + path
		}
		if f.ParentID == nil {
			return path, nil
		}
		currentID = *f.ParentID
	}
	return path, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
