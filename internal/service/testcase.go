package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quiver/internal/config"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
	"quiver/internal/ident"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type caseService struct {
	caseRepo    repositories.CaseRepository
	versionRepo repositories.VersionRepository
	folderRepo  repositories.FolderRepository
	txManager   repositories.TransactionManager
	authorizer  services.Authorizer
	logger      *slog.Logger
}

// NewCaseService creates a new test case service
func NewCaseService(
	caseRepo repositories.CaseRepository,
	versionRepo repositories.VersionRepository,
	folderRepo repositories.FolderRepository,
	txManager repositories.TransactionManager,
	authorizer services.Authorizer,
	logger *slog.Logger,
) services.CaseService {
	return &caseService{
		caseRepo:    caseRepo,
		versionRepo: versionRepo,
		folderRepo:  folderRepo,
		txManager:   txManager,
		authorizer:  authorizer,
		logger:      logger,
	}
}

// CreateCase creates a case with version 1 written immediately
func (s *caseService) CreateCase(ctx context.Context, req *services.CreateCaseRequest) (*models.TestCase, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionCreate, req.ProjectID); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.TemplateID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxCaseNameLength)),
	); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	if req.FolderID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *req.FolderID, req.ProjectID); err != nil {
			return nil, fmt.Errorf("folder: %w", err)
		}
	}

	siblings, err := s.caseRepo.ListByFolder(ctx, req.FolderID, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder cases: %w", err)
	}
	siblingOrders := make([]float64, len(siblings))
	for i := range siblings {
		siblingOrders[i] = siblings[i].Order
	}

	now := time.Now()
	content := models.VersionContent{
		Name:       req.Name,
		TemplateID: req.TemplateID,
		State:      req.State,
		Estimate:   req.Estimate,
		Automated:  req.Automated,
		Steps:      req.Steps,
		Fields:     req.Fields,
		Document:   req.Document,
	}
	c := &models.TestCase{
		ID:             ident.NewID(),
		ProjectID:      req.ProjectID,
		FolderID:       req.FolderID,
		TemplateID:     req.TemplateID,
		Name:           req.Name,
		State:          req.State,
		Estimate:       req.Estimate,
		CreatorID:      req.ActorID,
		Automated:      req.Automated,
		CurrentVersion: 1,
		Order:          ident.AppendOrder(siblingOrders),
		Fields:         req.Fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	v1 := &models.Version{
		CaseID:    c.ID,
		Number:    1,
		Content:   content.Clone(),
		CreatedAt: now,
		CreatedBy: req.ActorID,
	}
	if err := s.caseRepo.Create(ctx, c, v1); err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		"id", c.ID,
		"name", c.Name,
		"project_id", c.ProjectID,
		"folder_id", c.FolderID,
	)
	return c, nil
}

// UpdateCase applies a patch, appending a new version when versioned
// content changed
func (s *caseService) UpdateCase(ctx context.Context, req *services.UpdateCaseRequest) (int, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.CaseID); err != nil {
		return 0, err
	}
	return s.applyPatch(ctx, req)
}

// applyPatch is UpdateCase minus the permission check; bulk operations
// share it after their single up-front check.
func (s *caseService) applyPatch(ctx context.Context, req *services.UpdateCaseRequest) (int, error) {
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return 0, err
	}
	base := req.BaseVersion
	if base == 0 {
		base = c.CurrentVersion
	}
	if base != c.CurrentVersion {
		return 0, &domain.ConcurrentModificationError{
			Message: fmt.Sprintf("case %s: version moved from %d to %d during edit",
				c.ID, base, c.CurrentVersion),
		}
	}

	current, err := s.versionRepo.Get(ctx, req.CaseID, base)
	if err != nil {
		return 0, err
	}
	next := applyCasePatch(current.Content.Clone(), &req.Patch)
	if contentEqual(&current.Content, &next) {
		return base, nil // bookkeeping-only calls never version
	}

	now := time.Now()
	c.Name = next.Name
	c.TemplateID = next.TemplateID
	c.State = next.State
	c.Estimate = next.Estimate
	c.Automated = next.Automated
	c.Fields = next.Fields
	c.UpdatedAt = now

	v := &models.Version{
		CaseID:    c.ID,
		Number:    base + 1,
		Content:   next,
		CreatedAt: now,
		CreatedBy: req.ActorID,
	}
	if err := s.caseRepo.AdvanceVersion(ctx, c, base, v); err != nil {
		return 0, err
	}

	s.logger.Info("case updated", "id", c.ID, "version", v.Number)
	return v.Number, nil
}

// MoveCase reassigns the containing folder. No version is created.
func (s *caseService) MoveCase(ctx context.Context, req *services.MoveCaseRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionMove, req.CaseID); err != nil {
		return err
	}
	return s.moveCase(ctx, req)
}

func (s *caseService) moveCase(ctx context.Context, req *services.MoveCaseRequest) error {
	if req.NewFolderID != nil && *req.NewFolderID == "" {
		req.NewFolderID = nil
	}
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return err
	}
	if req.NewFolderID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *req.NewFolderID, req.ProjectID); err != nil {
			return fmt.Errorf("target folder: %w", err)
		}
	}

	siblings, err := s.caseRepo.ListByFolder(ctx, req.NewFolderID, req.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to list folder cases: %w", err)
	}
	siblingOrders := make([]float64, 0, len(siblings))
	for i := range siblings {
		if siblings[i].ID != c.ID {
			siblingOrders = append(siblingOrders, siblings[i].Order)
		}
	}

	c.FolderID = req.NewFolderID
	c.Order = ident.AppendOrder(siblingOrders)
	c.UpdatedAt = time.Now()
	if err := s.caseRepo.Update(ctx, c); err != nil {
		return err
	}
	s.logger.Info("case moved", "id", c.ID, "folder_id", c.FolderID)
	return nil
}

// DeleteCase soft-deletes the case, keeping its version history
func (s *caseService) DeleteCase(ctx context.Context, req *services.DeleteCaseRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionDelete, req.CaseID); err != nil {
		return err
	}
	if err := s.caseRepo.SoftDelete(ctx, req.CaseID, req.ProjectID, time.Now()); err != nil {
		return err
	}
	s.logger.Info("case deleted", "id", req.CaseID)
	return nil
}

// GetCase retrieves an active case
func (s *caseService) GetCase(ctx context.Context, id, projectID string) (*models.TestCase, error) {
	return s.caseRepo.GetByID(ctx, id, projectID)
}

// LinkIssue attaches an external issue reference. Idempotent; issue
// links are live references, so no version is created.
func (s *caseService) LinkIssue(ctx context.Context, req *services.IssueLinkRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.CaseID); err != nil {
		return err
	}
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return err
	}
	if c.HasIssue(req.Issue.Key()) {
		return nil
	}
	c.Issues = append(c.Issues, req.Issue)
	c.UpdatedAt = time.Now()
	return s.caseRepo.Update(ctx, c)
}

// UnlinkIssue detaches an external issue reference. Idempotent.
func (s *caseService) UnlinkIssue(ctx context.Context, req *services.IssueLinkRequest) error {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.CaseID); err != nil {
		return err
	}
	c, err := s.caseRepo.GetByID(ctx, req.CaseID, req.ProjectID)
	if err != nil {
		return err
	}
	key := req.Issue.Key()
	kept := c.Issues[:0]
	for _, ref := range c.Issues {
		if ref.Key() != key {
			kept = append(kept, ref)
		}
	}
	if len(kept) == len(c.Issues) {
		return nil
	}
	c.Issues = kept
	c.UpdatedAt = time.Now()
	return s.caseRepo.Update(ctx, c)
}

// BulkUpdate applies one patch across many cases. The permission check
// runs once for the action class and fails the whole batch; everything
// after that is per item.
func (s *caseService) BulkUpdate(ctx context.Context, req *services.BulkUpdateRequest) []services.BulkResult {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.ProjectID); err != nil {
		return failAll(req.CaseIDs, err)
	}
	results := make([]services.BulkResult, 0, len(req.CaseIDs))
	for _, id := range req.CaseIDs {
		item := &services.UpdateCaseRequest{
			ActorID:   req.ActorID,
			ProjectID: req.ProjectID,
			CaseID:    id,
			Patch:     req.Patch,
		}
		_, err := s.applyPatch(ctx, item)
		if errors.Is(err, domain.ErrConcurrent) {
			// Retryable by contract: one silent retry re-reads the
			// moved version before surfacing.
			_, err = s.applyPatch(ctx, item)
		}
		results = append(results, services.BulkResult{CaseID: id, Err: err})
	}
	return results
}

// BulkMove moves many cases into one folder
func (s *caseService) BulkMove(ctx context.Context, req *services.BulkMoveRequest) []services.BulkResult {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionMove, req.ProjectID); err != nil {
		return failAll(req.CaseIDs, err)
	}
	results := make([]services.BulkResult, 0, len(req.CaseIDs))
	for _, id := range req.CaseIDs {
		err := s.moveCase(ctx, &services.MoveCaseRequest{
			ActorID:     req.ActorID,
			ProjectID:   req.ProjectID,
			CaseID:      id,
			NewFolderID: req.NewFolderID,
		})
		results = append(results, services.BulkResult{CaseID: id, Err: err})
	}
	return results
}

// BulkDelete soft-deletes many cases
func (s *caseService) BulkDelete(ctx context.Context, req *services.BulkDeleteRequest) []services.BulkResult {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionDelete, req.ProjectID); err != nil {
		return failAll(req.CaseIDs, err)
	}
	now := time.Now()
	results := make([]services.BulkResult, 0, len(req.CaseIDs))
	for _, id := range req.CaseIDs {
		err := s.caseRepo.SoftDelete(ctx, id, req.ProjectID, now)
		results = append(results, services.BulkResult{CaseID: id, Err: err})
	}
	return results
}

func failAll(ids []string, err error) []services.BulkResult {
	results := make([]services.BulkResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, services.BulkResult{CaseID: id, Err: err})
	}
	return results
}

// applyCasePatch folds a patch into a copy of the current content. Nil
// members leave fields untouched; a nil entry in Fields clears that
// field.
func applyCasePatch(content models.VersionContent, patch *services.CasePatch) models.VersionContent {
	if patch.Name != nil {
		content.Name = *patch.Name
	}
	if patch.TemplateID != nil {
		content.TemplateID = *patch.TemplateID
	}
	if patch.State != nil {
		content.State = *patch.State
	}
	if patch.Estimate != nil {
		content.Estimate = *patch.Estimate
	}
	if patch.Automated != nil {
		content.Automated = *patch.Automated
	}
	if patch.Steps != nil {
		content.Steps = append([]models.Step(nil), (*patch.Steps)...)
	}
	if patch.Document != nil {
		content.Document = append([]byte(nil), (*patch.Document)...)
	}
	if len(patch.Fields) > 0 {
		if content.Fields == nil {
			content.Fields = make(map[string]models.FieldValue, len(patch.Fields))
		}
		for id, value := range patch.Fields {
			if value == nil {
				delete(content.Fields, id)
			} else {
				content.Fields[id] = *value
			}
		}
	}
	return content
}
