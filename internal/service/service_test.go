package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"quiver/internal/domain/models"
	"quiver/internal/domain/services"
	"quiver/internal/repository/memory"
)

// env wires every service against one in-memory store, with a project
// already created.
type env struct {
	store    *memory.Store
	projects services.ProjectService
	folders  services.FolderService
	cases    services.CaseService
	diffs    services.DiffService
	tags     services.TagService
	views    services.ViewService
	groups   services.SharedStepService
	project  *models.Project
}

const actor = "alice"

func newEnv(t *testing.T) *env {
	return newEnvWithAuth(t, AllowAllAuthorizer{})
}

func newEnvWithAuth(t *testing.T, auth services.Authorizer) *env {
	t.Helper()

	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	projectRepo := memory.NewProjectRepository(store)
	folderRepo := memory.NewFolderRepository(store)
	caseRepo := memory.NewCaseRepository(store)
	versionRepo := memory.NewVersionRepository(store)
	tagRepo := memory.NewTagRepository(store)
	groupRepo := memory.NewSharedStepRepository(store)
	txManager := memory.NewTransactionManager(store)

	e := &env{
		store:    store,
		projects: NewProjectService(projectRepo, auth, logger),
		folders:  NewFolderService(folderRepo, caseRepo, txManager, auth, logger),
		cases:    NewCaseService(caseRepo, versionRepo, folderRepo, txManager, auth, logger),
		diffs:    NewDiffService(versionRepo, caseRepo, logger),
		tags:     NewTagService(tagRepo, caseRepo, auth, logger),
		views:    NewViewService(caseRepo, folderRepo, tagRepo, logger),
		groups:   NewSharedStepService(groupRepo, auth, logger),
	}

	// Project creation goes through an allow-all service so a denying
	// authorizer under test still gets its fixture.
	setup := NewProjectService(projectRepo, AllowAllAuthorizer{}, logger)
	project, err := setup.CreateProject(context.Background(), &services.CreateProjectRequest{
		ActorID: actor,
		Name:    "Checkout QA",
	})
	require.NoError(t, err)
	e.project = project

	return e
}

func (e *env) mkFolder(t *testing.T, parentID *string, name string) *models.Folder {
	t.Helper()
	folder, err := e.folders.CreateFolder(context.Background(), &services.CreateFolderRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		ParentID:  parentID,
		Name:      name,
	})
	require.NoError(t, err)
	return folder
}

func (e *env) mkCase(t *testing.T, folderID *string, name string) *models.TestCase {
	t.Helper()
	c, err := e.cases.CreateCase(context.Background(), &services.CreateCaseRequest{
		ActorID:    actor,
		ProjectID:  e.project.ID,
		FolderID:   folderID,
		TemplateID: "steps",
		Name:       name,
	})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }
