package service

import (
	"context"
	"fmt"
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

func TestCreateCaseWritesVersionOne(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := e.cases.CreateCase(ctx, &services.CreateCaseRequest{
		ActorID:    actor,
		ProjectID:  e.project.ID,
		TemplateID: "steps",
		Name:       "Pay with saved card",
		State:      "active",
		Estimate:   "5m",
		Steps: []models.Step{
			{ID: "s1", Action: "Add item to cart", Expected: "Cart shows one item"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.CurrentVersion)
	require.Equal(t, actor, c.CreatorID)

	versions, err := e.diffs.ListVersions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, 1, versions[0].Number)
	require.Equal(t, "Pay with saved card", versions[0].Content.Name)
	require.Len(t, versions[0].Content.Steps, 1)
}

func TestCreateCaseRequiresTemplate(t *testing.T) {
	e := newEnv(t)

	_, err := e.cases.CreateCase(context.Background(), &services.CreateCaseRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "No template",
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateCaseAppendsContiguousVersions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.mkCase(t, nil, "Login works")

	n, err := e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 1,
		Patch:       services.CasePatch{Name: strPtr("Login succeeds")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 2,
		Patch:       services.CasePatch{State: strPtr("active")},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	versions, err := e.diffs.ListVersions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		require.Equal(t, i+1, v.Number)
	}

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.CurrentVersion)
	require.Equal(t, "Login succeeds", got.Name)
	require.Equal(t, "active", got.State)
}

func TestUpdateCaseNoOpDoesNotVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.mkCase(t, nil, "Stable name")

	n, err := e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 1,
		Patch:       services.CasePatch{Name: strPtr("Stable name")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	versions, err := e.diffs.ListVersions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestUpdateCaseStaleBaseVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.mkCase(t, nil, "Contended")

	_, err := e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 1,
		Patch:       services.CasePatch{Name: strPtr("First writer")},
	})
	require.NoError(t, err)

	// A second writer still holding version 1 must not silently clobber.
	_, err = e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     "bob",
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 1,
		Patch:       services.CasePatch{Name: strPtr("Second writer")},
	})
	require.ErrorIs(t, err, domain.ErrConcurrent)

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, "First writer", got.Name)
	require.Equal(t, 2, got.CurrentVersion)
}

func TestMoveCaseDoesNotVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	folder := e.mkFolder(t, nil, "Target")
	existing := e.mkCase(t, &folder.ID, "Already here")
	c := e.mkCase(t, nil, "Mover")

	err := e.cases.MoveCase(ctx, &services.MoveCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		NewFolderID: &folder.ID,
	})
	require.NoError(t, err)

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, folder.ID, *got.FolderID)
	require.Equal(t, 1, got.CurrentVersion)
	require.Greater(t, got.Order, existing.Order) // appended after its new siblings
}

func TestDeleteCaseKeepsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.mkCase(t, nil, "Short lived")

	err := e.cases.DeleteCase(ctx, &services.DeleteCaseRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    c.ID,
	})
	require.NoError(t, err)

	_, err = e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	versions, err := e.diffs.ListVersions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestLinkIssueIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.mkCase(t, nil, "Flaky payment")

	issue := models.IssueRef{ExternalID: "PAY-101", TrackerKind: "jira"}
	req := &services.IssueLinkRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    c.ID,
		Issue:     issue,
	}
	require.NoError(t, e.cases.LinkIssue(ctx, req))
	require.NoError(t, e.cases.LinkIssue(ctx, req))

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 1)
	require.Equal(t, 1, got.CurrentVersion) // links never version

	require.NoError(t, e.cases.UnlinkIssue(ctx, req))
	require.NoError(t, e.cases.UnlinkIssue(ctx, req))
	got, err = e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Empty(t, got.Issues)
}

func TestBulkUpdateReportsPerItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.mkCase(t, nil, "Bulk A")
	b := e.mkCase(t, nil, "Bulk B")

	results := e.cases.BulkUpdate(ctx, &services.BulkUpdateRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseIDs:   []string{a.ID, "missing-id", b.ID},
		Patch:     services.CasePatch{State: strPtr("reviewed")},
	})
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, domain.ErrNotFound)
	require.NoError(t, results[2].Err)
	require.Equal(t, "success", results[0].Outcome())

	// One failed item must not stop the rest of the batch.
	got, err := e.cases.GetCase(ctx, b.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, "reviewed", got.State)
	require.Equal(t, 2, got.CurrentVersion)
}

func TestBulkMove(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	folder := e.mkFolder(t, nil, "Destination")
	a := e.mkCase(t, nil, "Mover A")
	b := e.mkCase(t, nil, "Mover B")

	results := e.cases.BulkMove(ctx, &services.BulkMoveRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseIDs:     []string{a.ID, b.ID},
		NewFolderID: &folder.ID,
	})
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	contents, err := e.folders.ListChildren(ctx, &folder.ID, e.project.ID)
	require.NoError(t, err)
	require.Len(t, contents.Cases, 2)
}

func TestBulkDeletePermissionFailsWholeBatch(t *testing.T) {
	e := newEnvWithAuth(t, DenyAction{Inner: AllowAllAuthorizer{}, Action: services.ActionDelete})
	ctx := context.Background()

	a := e.mkCase(t, nil, "Protected A")
	b := e.mkCase(t, nil, "Protected B")

	results := e.cases.BulkDelete(ctx, &services.BulkDeleteRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseIDs:   []string{a.ID, b.ID},
	})
	require.Len(t, results, 2)
	for _, r := range results {
		require.ErrorIs(t, r.Err, domain.ErrPermission)
	}

	_, err := e.cases.GetCase(ctx, a.ID, e.project.ID)
	require.NoError(t, err)
}

func TestUpdateCaseClearsCustomField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := e.cases.CreateCase(ctx, &services.CreateCaseRequest{
		ActorID:    actor,
		ProjectID:  e.project.ID,
		TemplateID: "steps",
		Name:       "Field holder",
		Fields: map[string]models.FieldValue{
			"severity": {Kind: models.FieldDropdown, Text: "high"},
		},
	})
	require.NoError(t, err)

	n, err := e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		CaseID:      c.ID,
		BaseVersion: 1,
		Patch: services.CasePatch{
			Fields: map[string]*models.FieldValue{"severity": nil},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.NotContains(t, got.Fields, "severity")
}

// contestedCaseRepo fails AdvanceVersion with a concurrency conflict a
// set number of times before letting writes through, as if another
// writer kept winning the compare-and-set.
type contestedCaseRepo struct {
	repositories.CaseRepository
	conflicts int
}

func (r *contestedCaseRepo) AdvanceVersion(ctx context.Context, c *models.TestCase, expected int, v *models.Version) error {
	if r.conflicts > 0 {
		r.conflicts--
		return &domain.ConcurrentModificationError{
			Message: fmt.Sprintf("case %s changed concurrently", c.ID),
		}
	}
	return r.CaseRepository.AdvanceVersion(ctx, c, expected, v)
}

func TestBulkUpdateRetriesConflictOnceThenReports(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.mkCase(t, nil, "Contested A")
	b := e.mkCase(t, nil, "Contested B")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	contested := &contestedCaseRepo{CaseRepository: memory.NewCaseRepository(e.store)}
	cases := NewCaseService(
		contested,
		memory.NewVersionRepository(e.store),
		memory.NewFolderRepository(e.store),
		memory.NewTransactionManager(e.store),
		AllowAllAuthorizer{},
		logger,
	)

	// One lost race is absorbed by the silent retry.
	contested.conflicts = 1
	results := cases.BulkUpdate(ctx, &services.BulkUpdateRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseIDs:   []string{a.ID, b.ID},
		Patch:     services.CasePatch{State: strPtr("reviewed")},
	})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	got, err := cases.GetCase(ctx, a.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, "reviewed", got.State)
	require.Equal(t, 2, got.CurrentVersion)

	// A writer that keeps losing is reported after exactly one retry,
	// without stopping the rest of the batch.
	contested.conflicts = 3
	results = cases.BulkUpdate(ctx, &services.BulkUpdateRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseIDs:   []string{a.ID, b.ID},
		Patch:     services.CasePatch{State: strPtr("retired")},
	})
	require.ErrorIs(t, results[0].Err, domain.ErrConcurrent)
	require.NoError(t, results[1].Err)

	got, err = cases.GetCase(ctx, a.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, "reviewed", got.State)

	got, err = cases.GetCase(ctx, b.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, "retired", got.State)
}
