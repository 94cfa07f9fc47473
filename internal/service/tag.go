package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quiver/internal/config"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/ident"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type tagService struct {
	tagRepo    repositories.TagRepository
	caseRepo   repositories.CaseRepository
	authorizer services.Authorizer
	logger     *slog.Logger
}

// NewTagService creates a new tag service
func NewTagService(
	tagRepo repositories.TagRepository,
	caseRepo repositories.CaseRepository,
	authorizer services.Authorizer,
	logger *slog.Logger,
) services.TagService {
	return &tagService{
		tagRepo:    tagRepo,
		caseRepo:   caseRepo,
		authorizer: authorizer,
		logger:     logger,
	}
}

// CreateOrRestore creates a tag, or restores a soft-deleted tag holding
// the same name case-insensitively
func (s *tagService) CreateOrRestore(ctx context.Context, req *services.TagRequest) (*models.Tag, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionCreate, "tags"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := validateTagName(name); err != nil {
		return nil, err
	}

	existing, err := s.tagRepo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Active() {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("tag name %q exists", existing.Name),
				ResourceType: "tag",
				ResourceID:   existing.ID,
			}
		}
		// Restoration is a state transition on the original row, never
		// a new row: the tag keeps its id and historical attachments.
		existing.DeletedAt = nil
		existing.Name = name
		existing.UpdatedAt = time.Now()
		if err := s.tagRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("tag restored", "id", existing.ID, "name", existing.Name)
		return existing, nil
	}

	now := time.Now()
	tag := &models.Tag{
		ID:        ident.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tagRepo.Create(ctx, tag); err != nil {
		return nil, err
	}
	s.logger.Info("tag created", "id", tag.ID, "name", tag.Name)
	return tag, nil
}

// Rename renames a tag. A soft-deleted holder of the target name frees
// the name; histories are not merged.
func (s *tagService) Rename(ctx context.Context, req *services.RenameTagRequest) (*models.Tag, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.TagID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.NewName)
	if err := validateTagName(name); err != nil {
		return nil, err
	}

	tag, err := s.tagRepo.GetByID(ctx, req.TagID)
	if err != nil {
		return nil, err
	}

	holder, err := s.tagRepo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if holder != nil && holder.ID != tag.ID {
		if holder.Active() {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("tag name %q exists", holder.Name),
				ResourceType: "tag",
				ResourceID:   holder.ID,
			}
		}
		// The deleted holder keeps its id and history but gives up the
		// name so it can no longer be restored by re-creating it.
		holder.Name = fmt.Sprintf("%s (deleted %s)", holder.Name, holder.ID[:8])
		if err := s.tagRepo.Update(ctx, holder); err != nil {
			return nil, err
		}
	}

	tag.Name = name
	tag.UpdatedAt = time.Now()
	if err := s.tagRepo.Update(ctx, tag); err != nil {
		return nil, err
	}
	s.logger.Info("tag renamed", "id", tag.ID, "name", tag.Name)
	return tag, nil
}

// Delete soft-deletes a tag. Attachments stay on the cases; the tag
// simply disappears from active listings and view dimensions.
func (s *tagService) Delete(ctx context.Context, req *services.DeleteTagRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionDelete, req.TagID); err != nil {
		return err
	}
	tag, err := s.tagRepo.GetByID(ctx, req.TagID)
	if err != nil {
		return err
	}
	now := time.Now()
	tag.DeletedAt = &now
	tag.UpdatedAt = now
	if err := s.tagRepo.Update(ctx, tag); err != nil {
		return err
	}
	s.logger.Info("tag deleted", "id", tag.ID, "name", tag.Name)
	return nil
}

// Attach attaches a tag to a case. Idempotent; tags are live
// references, so no version is created.
func (s *tagService) Attach(ctx context.Context, req *services.AttachTagRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionTag, req.CaseID); err != nil {
		return err
	}
	if _, err := s.tagRepo.GetByID(ctx, req.TagID); err != nil {
		return err
	}
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return err
	}
	if c.HasTag(req.TagID) {
		return nil // already attached, not an error
	}
	c.Tags = append(c.Tags, req.TagID)
	c.UpdatedAt = time.Now()
	return s.caseRepo.Update(ctx, c)
}

// Detach detaches a tag from a case. Idempotent.
func (s *tagService) Detach(ctx context.Context, req *services.AttachTagRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionTag, req.CaseID); err != nil {
		return err
	}
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return err
	}
	kept := c.Tags[:0]
	for _, id := range c.Tags {
		if id != req.TagID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(c.Tags) {
		return nil
	}
	c.Tags = kept
	c.UpdatedAt = time.Now()
	return s.caseRepo.Update(ctx, c)
}

// ListActive lists active tags ordered by name
func (s *tagService) ListActive(ctx context.Context) ([]models.Tag, error) {
	return s.tagRepo.ListActive(ctx)
}

func validateTagName(name string) error {
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxTagNameLength),
	); err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("tag name: %v", err)}
	}
	return nil
}
