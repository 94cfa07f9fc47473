// Package memory implements the repository interfaces over arena-style
// in-process storage: every aggregate lives in a flat map keyed by id,
// with parent links as plain id references. Soft deletion is a state
// on the row, never a removal, so restoration and version history
// always have the row to return to.
//
// The store backs the service tests and the CLI's offline mode. The
// production store is the postgres package; both sit behind the same
// interfaces.
package memory

import (
	"context"
	"sync"

	"quiver/internal/domain/models"
)

// Store is the shared arena. All repository views lock it through
// lock/unlock so a transaction can hold the whole store across a
// multi-step mutation (e.g. a cascade delete).
type Store struct {
	mu sync.Mutex

	projects map[string]*models.Project
	folders  map[string]*models.Folder
	cases    map[string]*models.TestCase
	versions map[string][]models.Version // case id -> ascending chain
	tags     map[string]*models.Tag
	groups   map[string]*models.SharedStepGroup
}

// NewStore creates an empty arena.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*models.Project),
		folders:  make(map[string]*models.Folder),
		cases:    make(map[string]*models.TestCase),
		versions: make(map[string][]models.Version),
		tags:     make(map[string]*models.Tag),
		groups:   make(map[string]*models.SharedStepGroup),
	}
}

// txMarker flags a context as already holding the store lock.
type txMarker struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txMarker{}) != nil
}

// lock acquires the store unless the context already holds it via a
// transaction.
func (s *Store) lock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) unlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

func cloneFolder(f *models.Folder) *models.Folder {
	out := *f
	if f.ParentID != nil {
		id := *f.ParentID
		out.ParentID = &id
	}
	if f.DeletedAt != nil {
		at := *f.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}

func cloneCase(c *models.TestCase) *models.TestCase {
	out := *c
	if c.FolderID != nil {
		id := *c.FolderID
		out.FolderID = &id
	}
	if c.DeletedAt != nil {
		at := *c.DeletedAt
		out.DeletedAt = &at
	}
	out.Tags = append([]string(nil), c.Tags...)
	out.Issues = append([]models.IssueRef(nil), c.Issues...)
	if c.Fields != nil {
		out.Fields = make(map[string]models.FieldValue, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}

func cloneVersion(v *models.Version) *models.Version {
	out := *v
	out.Content = v.Content.Clone()
	return &out
}

func cloneTag(t *models.Tag) *models.Tag {
	out := *t
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}

func cloneGroup(g *models.SharedStepGroup) *models.SharedStepGroup {
	out := *g
	out.Steps = append([]models.Step(nil), g.Steps...)
	if g.DeletedAt != nil {
		at := *g.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}
