package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"quiver/internal/domain"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/repository/memory"
)

func TestCreateFolderRejectsDuplicateSiblingName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkFolder(t, nil, "Checkout")
	_, err := e.folders.CreateFolder(ctx, &services.CreateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "Checkout",
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "folder", conflict.ResourceType)

	// Same name under a different parent is fine.
	parent := e.mkFolder(t, nil, "Payments")
	_, err = e.folders.CreateFolder(ctx, &services.CreateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		ParentID:  &parent.ID,
		Name:      "Checkout",
	})
	require.NoError(t, err)
}

func TestCreateFolderValidatesName(t *testing.T) {
	e := newEnv(t)

	_, err := e.folders.CreateFolder(context.Background(), &services.CreateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "x", // below minimum length
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateFolderAppendsAfterSiblings(t *testing.T) {
	e := newEnv(t)

	a := e.mkFolder(t, nil, "Alpha")
	b := e.mkFolder(t, nil, "Beta")
	c := e.mkFolder(t, nil, "Gamma")

	require.Less(t, a.Order, b.Order)
	require.Less(t, b.Order, c.Order)

	contents, err := e.folders.ListChildren(context.Background(), nil, e.project.ID)
	require.NoError(t, err)
	require.Len(t, contents.Folders, 3)
	require.Equal(t, "Alpha", contents.Folders[0].Name)
	require.Equal(t, "Gamma", contents.Folders[2].Name)
}

func TestMoveFolderRejectsCycles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.mkFolder(t, nil, "Level A")
	b := e.mkFolder(t, &a.ID, "Level B")
	c := e.mkFolder(t, &b.ID, "Level C")

	tests := []struct {
		name      string
		folderID  string
		newParent string
	}{
		{"into itself", a.ID, a.ID},
		{"into its child", a.ID, b.ID},
		{"into its grandchild", a.ID, c.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.folders.MoveFolder(ctx, &services.MoveFolderRequest{
				ActorID:     actor,
				ProjectID:   e.project.ID,
				FolderID:    tt.folderID,
				NewParentID: &tt.newParent,
			})
			require.ErrorIs(t, err, domain.ErrCycle)
		})
	}

	// The rejected moves must leave the tree untouched.
	got, err := e.folders.GetFolder(ctx, b.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, *got.ParentID)
}

func TestMoveFolderToPosition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkFolder(t, nil, "First")
	e.mkFolder(t, nil, "Second")
	third := e.mkFolder(t, nil, "Third")

	_, err := e.folders.MoveFolder(ctx, &services.MoveFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  third.ID,
		Position:  0,
	})
	require.NoError(t, err)

	contents, err := e.folders.ListChildren(ctx, nil, e.project.ID)
	require.NoError(t, err)
	names := []string{contents.Folders[0].Name, contents.Folders[1].Name, contents.Folders[2].Name}
	require.Equal(t, []string{"Third", "First", "Second"}, names)
}

func TestMoveFolderReparents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	src := e.mkFolder(t, nil, "Source")
	dst := e.mkFolder(t, nil, "Target")
	child := e.mkFolder(t, &src.ID, "Nested")

	moved, err := e.folders.MoveFolder(ctx, &services.MoveFolderRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		FolderID:    child.ID,
		NewParentID: &dst.ID,
	})
	require.NoError(t, err)
	require.Equal(t, dst.ID, *moved.ParentID)

	contents, err := e.folders.ListChildren(ctx, &src.ID, e.project.ID)
	require.NoError(t, err)
	require.Empty(t, contents.Folders)
}

func TestDeleteFolderCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	top := e.mkFolder(t, nil, "Checkout")
	mid := e.mkFolder(t, &top.ID, "Payments")
	leaf := e.mkFolder(t, &mid.ID, "Refunds")

	inTop := e.mkCase(t, &top.ID, "Cart totals")
	inLeaf := e.mkCase(t, &leaf.ID, "Refund within 30 days")
	atRoot := e.mkCase(t, nil, "Storefront loads")

	summary, err := e.folders.DeleteFolder(ctx, &services.DeleteFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  top.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Folders)
	require.Equal(t, 2, summary.Cases)

	for _, id := range []string{top.ID, mid.ID, leaf.ID} {
		_, err := e.folders.GetFolder(ctx, id, e.project.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	_, err = e.cases.GetCase(ctx, inTop.ID, e.project.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The root-level case survives, and deleted cases keep history.
	_, err = e.cases.GetCase(ctx, atRoot.ID, e.project.ID)
	require.NoError(t, err)
	versions, err := e.diffs.ListVersions(ctx, inLeaf.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestUpdateFolderRename(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkFolder(t, nil, "Taken")
	folder := e.mkFolder(t, nil, "Original")

	_, err := e.folders.UpdateFolder(ctx, &services.UpdateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  folder.ID,
		Name:      strPtr("Taken"),
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	renamed, err := e.folders.UpdateFolder(ctx, &services.UpdateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  folder.ID,
		Name:      strPtr("Renamed"),
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", renamed.Name)
}

func TestTreeCountsCases(t *testing.T) {
	e := newEnv(t)

	top := e.mkFolder(t, nil, "Suite")
	sub := e.mkFolder(t, &top.ID, "Smoke")
	e.mkCase(t, &top.ID, "One")
	e.mkCase(t, &sub.ID, "Two")
	e.mkCase(t, &sub.ID, "Three")

	roots, err := e.folders.Tree(context.Background(), e.project.ID)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Equal(t, 1, roots[0].CaseCount)
	require.Len(t, roots[0].Folders, 1)
	require.Equal(t, 2, roots[0].Folders[0].CaseCount)
}

func TestFolderPermissionDenied(t *testing.T) {
	e := newEnvWithAuth(t, DenyAction{Inner: AllowAllAuthorizer{}, Action: services.ActionDelete})
	ctx := context.Background()

	folder := e.mkFolder(t, nil, "Guarded")
	_, err := e.folders.DeleteFolder(ctx, &services.DeleteFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  folder.ID,
	})
	require.ErrorIs(t, err, domain.ErrPermission)

	// Denial is an error, not a silent no-op: the folder is untouched.
	_, err = e.folders.GetFolder(ctx, folder.ID, e.project.ID)
	require.NoError(t, err)
}

func TestFolderNameConflictIsCaseInsensitive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkFolder(t, nil, "Reports")

	// Create, rename, and move all apply the same casing rule the
	// storage unique index enforces.
	_, err := e.folders.CreateFolder(ctx, &services.CreateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		Name:      "reports",
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	other := e.mkFolder(t, nil, "Archive")
	_, err = e.folders.UpdateFolder(ctx, &services.UpdateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  other.ID,
		Name:      strPtr("REPORTS"),
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	parent := e.mkFolder(t, nil, "Parent")
	nested := e.mkFolder(t, &parent.ID, "reports")
	_, err = e.folders.MoveFolder(ctx, &services.MoveFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  nested.ID,
	})
	require.ErrorIs(t, err, domain.ErrConflict)
}

// trackingFolderRepo counts tree lock acquisitions on the way through
// to the real repository.
type trackingFolderRepo struct {
	repositories.FolderRepository
	locks int
}

func (r *trackingFolderRepo) LockProjectTree(ctx context.Context, projectID string) error {
	r.locks++
	return r.FolderRepository.LockProjectTree(ctx, projectID)
}

func TestStructuralFolderChangesLockProjectTree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	parent := e.mkFolder(t, nil, "Parent")
	child := e.mkFolder(t, &parent.ID, "Child")
	doomed := e.mkFolder(t, nil, "Doomed")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracked := &trackingFolderRepo{FolderRepository: memory.NewFolderRepository(e.store)}
	folders := NewFolderService(
		tracked,
		memory.NewCaseRepository(e.store),
		memory.NewTransactionManager(e.store),
		AllowAllAuthorizer{},
		logger,
	)

	_, err := folders.MoveFolder(ctx, &services.MoveFolderRequest{
		ActorID:     actor,
		ProjectID:   e.project.ID,
		FolderID:    child.ID,
		NewParentID: nil,
	})
	require.NoError(t, err)
	require.Equal(t, 1, tracked.locks)

	_, err = folders.DeleteFolder(ctx, &services.DeleteFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		FolderID:  doomed.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 2, tracked.locks)
}
