// Package seed loads YAML fixtures into a project through the service
// layer, so seeded data obeys the same validation and versioning rules
// as live writes.
package seed

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
	"quiver/internal/domain/models"
	"quiver/internal/domain/services"
)

//go:embed fixtures/*.yaml
var fixtureFiles embed.FS

// Fixture is the root of a seed file.
type Fixture struct {
	Project     FixtureProject  `yaml:"project"`
	Tags        []string        `yaml:"tags,omitempty"`
	SharedSteps []FixtureGroup  `yaml:"shared_steps,omitempty"`
	Folders     []FixtureFolder `yaml:"folders,omitempty"`
	Cases       []FixtureCase   `yaml:"cases,omitempty"` // project root level
}

// FixtureProject names the project to create
type FixtureProject struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

// FixtureGroup is a shared step group definition
type FixtureGroup struct {
	Name  string        `yaml:"name"`
	Steps []models.Step `yaml:"steps"`
}

// FixtureFolder is a folder with nested folders and cases
type FixtureFolder struct {
	Name          string          `yaml:"name"`
	Documentation string          `yaml:"documentation,omitempty"`
	Folders       []FixtureFolder `yaml:"folders,omitempty"`
	Cases         []FixtureCase   `yaml:"cases,omitempty"`
}

// FixtureCase is a test case definition
type FixtureCase struct {
	Name      string            `yaml:"name"`
	Template  string            `yaml:"template,omitempty"`
	State     string            `yaml:"state,omitempty"`
	Estimate  string            `yaml:"estimate,omitempty"`
	Automated bool              `yaml:"automated,omitempty"`
	Steps     []models.Step     `yaml:"steps,omitempty"`
	Tags      []string          `yaml:"tags,omitempty"`
	Issues    []models.IssueRef `yaml:"issues,omitempty"`
}

// Seeder creates fixture data through the service layer
type Seeder struct {
	projects services.ProjectService
	folders  services.FolderService
	cases    services.CaseService
	tags     services.TagService
	groups   services.SharedStepService
	logger   *slog.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(
	projects services.ProjectService,
	folders services.FolderService,
	cases services.CaseService,
	tags services.TagService,
	groups services.SharedStepService,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		projects: projects,
		folders:  folders,
		cases:    cases,
		tags:     tags,
		groups:   groups,
		logger:   logger,
	}
}

// LoadFixture parses a fixture from a file on disk, or from the
// embedded defaults when path is empty.
func LoadFixture(path string) (*Fixture, error) {
	var raw []byte
	var err error

	if path == "" {
		raw, err = fixtureFiles.ReadFile("fixtures/default.yaml")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	if fixture.Project.Name == "" {
		return nil, fmt.Errorf("fixture has no project name")
	}

	return &fixture, nil
}

// Apply creates the fixture's project and everything under it.
// Returns the created project.
func (s *Seeder) Apply(ctx context.Context, fixture *Fixture) (*models.Project, error) {
	actor := fixture.Project.Owner
	if actor == "" {
		actor = "seed"
	}

	project, err := s.projects.CreateProject(ctx, &services.CreateProjectRequest{
		ActorID: actor,
		Name:    fixture.Project.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("seed project: %w", err)
	}
	s.logger.Info("seeded project", "project_id", project.ID, "name", project.Name)

	tagIDs := make(map[string]string)
	for _, name := range fixture.Tags {
		tag, err := s.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: name})
		if err != nil {
			return nil, fmt.Errorf("seed tag %q: %w", name, err)
		}
		tagIDs[name] = tag.ID
	}

	for _, group := range fixture.SharedSteps {
		if _, err := s.groups.CreateGroup(ctx, &services.CreateGroupRequest{
			ActorID:   actor,
			ProjectID: project.ID,
			Name:      group.Name,
			Steps:     group.Steps,
		}); err != nil {
			return nil, fmt.Errorf("seed shared step group %q: %w", group.Name, err)
		}
	}

	for _, folder := range fixture.Folders {
		if err := s.applyFolder(ctx, actor, project.ID, nil, folder, tagIDs); err != nil {
			return nil, err
		}
	}
	for _, c := range fixture.Cases {
		if err := s.applyCase(ctx, actor, project.ID, nil, c, tagIDs); err != nil {
			return nil, err
		}
	}

	return project, nil
}

func (s *Seeder) applyFolder(ctx context.Context, actor, projectID string, parentID *string, fixture FixtureFolder, tagIDs map[string]string) error {
	folder, err := s.folders.CreateFolder(ctx, &services.CreateFolderRequest{
		ActorID:       actor,
		ProjectID:     projectID,
		ParentID:      parentID,
		Name:          fixture.Name,
		Documentation: fixture.Documentation,
	})
	if err != nil {
		return fmt.Errorf("seed folder %q: %w", fixture.Name, err)
	}

	for _, child := range fixture.Folders {
		if err := s.applyFolder(ctx, actor, projectID, &folder.ID, child, tagIDs); err != nil {
			return err
		}
	}
	for _, c := range fixture.Cases {
		if err := s.applyCase(ctx, actor, projectID, &folder.ID, c, tagIDs); err != nil {
			return err
		}
	}

	return nil
}

func (s *Seeder) applyCase(ctx context.Context, actor, projectID string, folderID *string, fixture FixtureCase, tagIDs map[string]string) error {
	created, err := s.cases.CreateCase(ctx, &services.CreateCaseRequest{
		ActorID:    actor,
		ProjectID:  projectID,
		FolderID:   folderID,
		TemplateID: fixture.Template,
		Name:       fixture.Name,
		State:      fixture.State,
		Estimate:   fixture.Estimate,
		Automated:  fixture.Automated,
		Steps:      fixture.Steps,
	})
	if err != nil {
		return fmt.Errorf("seed case %q: %w", fixture.Name, err)
	}

	for _, tagName := range fixture.Tags {
		tagID, ok := tagIDs[tagName]
		if !ok {
			// Case references a tag the fixture never declared
			tag, err := s.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: tagName})
			if err != nil {
				return fmt.Errorf("seed tag %q: %w", tagName, err)
			}
			tagID = tag.ID
			tagIDs[tagName] = tagID
		}
		if err := s.tags.Attach(ctx, &services.AttachTagRequest{
			ActorID:   actor,
			ProjectID: projectID,
			CaseID:    created.ID,
			TagID:     tagID,
		}); err != nil {
			return fmt.Errorf("attach tag %q to case %q: %w", tagName, fixture.Name, err)
		}
	}

	for _, issue := range fixture.Issues {
		if err := s.cases.LinkIssue(ctx, &services.IssueLinkRequest{
			ActorID:   actor,
			ProjectID: projectID,
			CaseID:    created.ID,
			Issue:     issue,
		}); err != nil {
			return fmt.Errorf("link issue %q to case %q: %w", issue.Key(), fixture.Name, err)
		}
	}

	return nil
}
