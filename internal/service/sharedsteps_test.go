package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/repository/memory"
)

func TestResolveExpandsGroupReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	group, err := e.groups.CreateGroup(ctx, &services.CreateGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "Sign in",
		Steps: []models.Step{
			{ID: "g1", Action: "Open login page"},
			{ID: "g2", Action: "Submit credentials"},
		},
	})
	require.NoError(t, err)

	steps := []models.Step{
		{ID: "s1", SharedGroupID: &group.ID},
		{ID: "s2", Action: "Open settings"},
	}
	resolved, err := e.groups.Resolve(ctx, e.project.ID, steps)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	require.Equal(t, "Open login page", resolved[0].Action)
	require.Equal(t, "Submit credentials", resolved[1].Action)
	require.Equal(t, "Open settings", resolved[2].Action)
}

func TestResolveKeepsDanglingReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	group, err := e.groups.CreateGroup(ctx, &services.CreateGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "Doomed",
		Steps:     []models.Step{{ID: "g1", Action: "Do the thing"}},
	})
	require.NoError(t, err)
	require.NoError(t, e.groups.DeleteGroup(ctx, &services.DeleteGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		GroupID:   group.ID,
	}))

	steps := []models.Step{{ID: "s1", SharedGroupID: &group.ID}}
	resolved, err := e.groups.Resolve(ctx, e.project.ID, steps)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, group.ID, *resolved[0].SharedGroupID)
}

func TestDeleteGroupLeavesCaseHistoryIntact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	group, err := e.groups.CreateGroup(ctx, &services.CreateGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "Shared login",
		Steps:     []models.Step{{ID: "g1", Action: "Log in"}},
	})
	require.NoError(t, err)

	c, err := e.cases.CreateCase(ctx, &services.CreateCaseRequest{
		ActorID:    actor,
		ProjectID:  e.project.ID,
		TemplateID: "steps",
		Name:       "Uses shared steps",
		Steps:      []models.Step{{ID: "s1", SharedGroupID: &group.ID}},
	})
	require.NoError(t, err)

	require.NoError(t, e.groups.DeleteGroup(ctx, &services.DeleteGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		GroupID:   group.ID,
	}))

	_, err = e.groups.GetGroup(ctx, group.ID, e.project.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The case still carries its reference, unexpanded.
	v, err := e.diffs.GetVersion(ctx, c.ID, 1)
	require.NoError(t, err)
	require.Equal(t, group.ID, *v.Content.Steps[0].SharedGroupID)
}

func TestUpdateGroupReplacesSteps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	group, err := e.groups.CreateGroup(ctx, &services.CreateGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "Editable",
		Steps:     []models.Step{{ID: "g1", Action: "Old step"}},
	})
	require.NoError(t, err)

	steps := []models.Step{
		{ID: "g1", Action: "New step"},
		{ID: "g2", Action: "Another"},
	}
	updated, err := e.groups.UpdateGroup(ctx, &services.UpdateGroupRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		GroupID:   group.ID,
		Steps:     &steps,
	})
	require.NoError(t, err)
	require.Len(t, updated.Steps, 2)
	require.Equal(t, "New step", updated.Steps[0].Action)
}

// failingGroupRepo simulates a backend outage on reads.
type failingGroupRepo struct {
	repositories.SharedStepRepository
	err error
}

func (r *failingGroupRepo) GetByID(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error) {
	return nil, r.err
}

func TestResolvePropagatesRepositoryErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	boom := errors.New("connection reset")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	groups := NewSharedStepService(
		&failingGroupRepo{SharedStepRepository: memory.NewSharedStepRepository(e.store), err: boom},
		AllowAllAuthorizer{},
		logger,
	)

	groupID := "g-1"
	steps := []models.Step{{ID: "s1", SharedGroupID: &groupID}}
	_, err := groups.Resolve(ctx, e.project.ID, steps)

	// Only a missing group keeps the raw reference; any other failure
	// must surface instead of rendering a silently unexpanded list.
	require.ErrorIs(t, err, boom)
}
