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

// CaseRepository implements repositories.CaseRepository over the arena.
type CaseRepository struct {
	store *Store
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(store *Store) repositories.CaseRepository {
	return &CaseRepository{store: store}
}

// Create inserts the case together with its version 1 snapshot
func (r *CaseRepository) Create(ctx context.Context, c *models.TestCase, v1 *models.Version) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	if _, ok := r.store.cases[c.ID]; ok {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("case %s already exists", c.ID),
			ResourceType: "case",
			ResourceID:   c.ID,
		}
	}
	r.store.cases[c.ID] = cloneCase(c)
	r.store.versions[c.ID] = []models.Version{*cloneVersion(v1)}
	return nil
}

// GetByID retrieves an active case
func (r *CaseRepository) GetByID(ctx context.Context, id, projectID string) (*models.TestCase, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	c, ok := r.store.cases[id]
	if !ok || c.ProjectID != projectID || !c.Active() {
		return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	return cloneCase(c), nil
}

// Update persists bookkeeping state; version rows are untouched
func (r *CaseRepository) Update(ctx context.Context, c *models.TestCase) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	existing, ok := r.store.cases[c.ID]
	if !ok || existing.ProjectID != c.ProjectID {
		return fmt.Errorf("case %s: %w", c.ID, domain.ErrNotFound)
	}
	r.store.cases[c.ID] = cloneCase(c)
	return nil
}

// AdvanceVersion appends the snapshot and moves current_version from
// expected to v.Number atomically under the store lock.
func (r *CaseRepository) AdvanceVersion(ctx context.Context, c *models.TestCase, expected int, v *models.Version) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	existing, ok := r.store.cases[c.ID]
	if !ok || existing.ProjectID != c.ProjectID || !existing.Active() {
		return fmt.Errorf("case %s: %w", c.ID, domain.ErrNotFound)
	}
	if existing.CurrentVersion != expected {
		return &domain.ConcurrentModificationError{
			Message: fmt.Sprintf("case %s: version moved from %d to %d during edit",
				c.ID, expected, existing.CurrentVersion),
		}
	}
	r.store.versions[c.ID] = append(r.store.versions[c.ID], *cloneVersion(v))
	updated := cloneCase(c)
	updated.CurrentVersion = v.Number
	r.store.cases[c.ID] = updated
	return nil
}

// SoftDelete marks the case deleted, leaving version rows intact
func (r *CaseRepository) SoftDelete(ctx context.Context, id, projectID string, at time.Time) error {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	c, ok := r.store.cases[id]
	if !ok || c.ProjectID != projectID || !c.Active() {
		return fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	when := at
	c.DeletedAt = &when
	c.UpdatedAt = at
	return nil
}

// SoftDeleteByFolders marks every active case in the given folders deleted
func (r *CaseRepository) SoftDeleteByFolders(ctx context.Context, projectID string, folderIDs []string, at time.Time) (int, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	members := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		members[id] = true
	}
	affected := 0
	for _, c := range r.store.cases {
		if c.ProjectID != projectID || !c.Active() || c.FolderID == nil {
			continue
		}
		if members[*c.FolderID] {
			when := at
			c.DeletedAt = &when
			c.UpdatedAt = at
			affected++
		}
	}
	return affected, nil
}

// ListByFolder lists active cases in a folder, order ascending
func (r *CaseRepository) ListByFolder(ctx context.Context, folderID *string, projectID string) ([]models.TestCase, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.TestCase
	for _, c := range r.store.cases {
		if c.ProjectID != projectID || !c.Active() {
			continue
		}
		if !sameParent(c.FolderID, folderID) {
			continue
		}
		out = append(out, *cloneCase(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// ListByProject lists all active cases in a project
func (r *CaseRepository) ListByProject(ctx context.Context, projectID string) ([]models.TestCase, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	var out []models.TestCase
	for _, c := range r.store.cases {
		if c.ProjectID == projectID && c.Active() {
			out = append(out, *cloneCase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// VersionRepository implements repositories.VersionRepository over the arena.
type VersionRepository struct {
	store *Store
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(store *Store) repositories.VersionRepository {
	return &VersionRepository{store: store}
}

// Get retrieves one version by number
func (r *VersionRepository) Get(ctx context.Context, caseID string, number int) (*models.Version, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	chain := r.store.versions[caseID]
	if number < 1 || number > len(chain) {
		return nil, fmt.Errorf("case %s version %d: %w", caseID, number, domain.ErrNotFound)
	}
	// Chain is contiguous from 1, so the slice index is number-1.
	return cloneVersion(&chain[number-1]), nil
}

// List retrieves all versions of a case, ascending by number
func (r *VersionRepository) List(ctx context.Context, caseID string) ([]models.Version, error) {
	r.store.lock(ctx)
	defer r.store.unlock(ctx)

	chain, ok := r.store.versions[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
	}
	out := make([]models.Version, len(chain))
	for i := range chain {
		out[i] = *cloneVersion(&chain[i])
	}
	return out, nil
}
