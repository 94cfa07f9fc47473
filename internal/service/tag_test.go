package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"quiver/internal/domain"
	"quiver/internal/domain/services"
)

func TestCreateTagNameIsCaseInsensitive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "Smoke"})
	require.NoError(t, err)

	_, err = e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "smoke"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestRecreateDeletedTagRestoresOriginalID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	original, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "regression"})
	require.NoError(t, err)

	require.NoError(t, e.tags.Delete(ctx, &services.DeleteTagRequest{ActorID: actor, TagID: original.ID}))

	active, err := e.tags.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	restored, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "Regression"})
	require.NoError(t, err)
	require.Equal(t, original.ID, restored.ID) // same row, historical attachments intact
	require.Equal(t, "Regression", restored.Name)
}

func TestRenameTagConflictsWithActiveHolder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "smoke"})
	require.NoError(t, err)
	other, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "nightly"})
	require.NoError(t, err)

	_, err = e.tags.Rename(ctx, &services.RenameTagRequest{ActorID: actor, TagID: other.ID, NewName: "SMOKE"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestRenameTagFreesDeletedHoldersName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	holder, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "legacy"})
	require.NoError(t, err)
	require.NoError(t, e.tags.Delete(ctx, &services.DeleteTagRequest{ActorID: actor, TagID: holder.ID}))

	tag, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "modern"})
	require.NoError(t, err)

	// The deleted holder gives up "legacy" rather than merging in.
	renamed, err := e.tags.Rename(ctx, &services.RenameTagRequest{ActorID: actor, TagID: tag.ID, NewName: "legacy"})
	require.NoError(t, err)
	require.Equal(t, "legacy", renamed.Name)
	require.Equal(t, tag.ID, renamed.ID)

	// Re-creating "legacy" now conflicts with the active rename target,
	// not the old deleted row.
	_, err = e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "legacy"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestAttachDetachIdempotentAndUnversioned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.mkCase(t, nil, "Tagged case")
	tag, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "smoke"})
	require.NoError(t, err)

	req := &services.AttachTagRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    c.ID,
		TagID:     tag.ID,
	}
	require.NoError(t, e.tags.Attach(ctx, req))
	require.NoError(t, e.tags.Attach(ctx, req))

	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, []string{tag.ID}, got.Tags)
	require.Equal(t, 1, got.CurrentVersion)

	versions, err := e.diffs.ListVersions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	require.NoError(t, e.tags.Detach(ctx, req))
	require.NoError(t, e.tags.Detach(ctx, req))
	got, err = e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Empty(t, got.Tags)
}

func TestDeletedTagKeepsAttachments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.mkCase(t, nil, "Keeps association")
	tag, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "flaky"})
	require.NoError(t, err)
	require.NoError(t, e.tags.Attach(ctx, &services.AttachTagRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    c.ID,
		TagID:     tag.ID,
	}))

	require.NoError(t, e.tags.Delete(ctx, &services.DeleteTagRequest{ActorID: actor, TagID: tag.ID}))

	active, err := e.tags.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// The attachment survives for history; only the listing hides it.
	got, err := e.cases.GetCase(ctx, c.ID, e.project.ID)
	require.NoError(t, err)
	require.Equal(t, []string{tag.ID}, got.Tags)
}

func TestTagNameValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)
}
