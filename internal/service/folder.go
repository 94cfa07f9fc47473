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

type folderService struct {
	folderRepo repositories.FolderRepository
	caseRepo   repositories.CaseRepository
	txManager  repositories.TransactionManager
	authorizer services.Authorizer
	logger     *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo repositories.FolderRepository,
	caseRepo repositories.CaseRepository,
	txManager repositories.TransactionManager,
	authorizer services.Authorizer,
	logger *slog.Logger,
) services.FolderService {
	return &folderService{
		folderRepo: folderRepo,
		caseRepo:   caseRepo,
		txManager:  txManager,
		authorizer: authorizer,
		logger:     logger,
	}
}

// CreateFolder creates a folder appended after its new siblings
func (s *folderService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionCreate, req.ProjectID); err != nil {
		return nil, err
	}
	if err := s.validateCreateRequest(req); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	// Normalize empty string to nil for root-level folders
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	if req.ParentID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *req.ParentID, req.ProjectID); err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
	}

	siblings, err := s.folderRepo.ListChildren(ctx, req.ParentID, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate names: %w", err)
	}
	// Case-insensitive, matching the unique index on LOWER(name).
	for _, sibling := range siblings {
		if strings.EqualFold(sibling.Name, req.Name) {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", req.Name),
				ResourceType: "folder",
				ResourceID:   sibling.ID,
			}
		}
	}

	now := time.Now()
	folder := &models.Folder{
		ID:            ident.NewID(),
		ProjectID:     req.ProjectID,
		ParentID:      req.ParentID,
		Name:          req.Name,
		Order:         ident.AppendOrder(orders(siblings)),
		Documentation: req.Documentation,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"project_id", req.ProjectID,
		"parent_id", folder.ParentID,
		"order", folder.Order,
	)
	return folder, nil
}

// UpdateFolder renames a folder or edits its documentation
func (s *folderService) UpdateFolder(ctx context.Context, req *services.UpdateFolderRequest) (*models.Folder, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionEdit, req.FolderID); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Documentation == nil {
		return nil, &domain.ValidationError{Message: "at least one field must be provided"}
	}
	if req.Name != nil {
		if err := validation.Validate(*req.Name,
			validation.Required,
			validation.Length(config.MinFolderNameLength, config.MaxFolderNameLength),
		); err != nil {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("name: %v", err)}
		}
	}

	folder, err := s.folderRepo.GetByID(ctx, req.FolderID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && *req.Name != folder.Name {
		siblings, err := s.folderRepo.ListChildren(ctx, folder.ParentID, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate names: %w", err)
		}
		for _, sibling := range siblings {
			if sibling.ID != folder.ID && strings.EqualFold(sibling.Name, *req.Name) {
				return nil, &domain.ConflictError{
					Message:      fmt.Sprintf("a folder named %q already exists in this location", *req.Name),
					ResourceType: "folder",
					ResourceID:   sibling.ID,
				}
			}
		}
		folder.Name = *req.Name
	}
	if req.Documentation != nil {
		folder.Documentation = *req.Documentation
	}
	folder.UpdatedAt = time.Now()

	if err := s.folderRepo.Update(ctx, folder); err != nil {
		return nil, err
	}
	s.logger.Info("folder updated", "id", folder.ID, "name", folder.Name)
	return folder, nil
}

// MoveFolder re-parents and/or reorders a folder
func (s *folderService) MoveFolder(ctx context.Context, req *services.MoveFolderRequest) (*models.Folder, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionMove, req.FolderID); err != nil {
		return nil, err
	}
	if req.NewParentID != nil && *req.NewParentID == "" {
		req.NewParentID = nil
	}

	var moved *models.Folder
	// The whole move runs inside one transaction, behind the project
	// tree lock, so a concurrent move cannot re-parent part of the
	// chain between the cycle check and the write.
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.folderRepo.LockProjectTree(ctx, req.ProjectID); err != nil {
			return err
		}
		folder, err := s.folderRepo.GetByID(ctx, req.FolderID, req.ProjectID)
		if err != nil {
			return err
		}
		if err := s.checkNoCycle(ctx, req.FolderID, req.NewParentID, req.ProjectID); err != nil {
			return err
		}

		siblings, err := s.folderRepo.ListChildren(ctx, req.NewParentID, req.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to list new siblings: %w", err)
		}
		// The folder itself is not its own neighbor when moving within
		// its current parent.
		kept := siblings[:0]
		for _, sibling := range siblings {
			if sibling.ID != folder.ID {
				if strings.EqualFold(sibling.Name, folder.Name) {
					return &domain.ConflictError{
						Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
						ResourceType: "folder",
						ResourceID:   sibling.ID,
					}
				}
				kept = append(kept, sibling)
			}
		}
		siblings = kept

		pos := req.Position
		if pos < 0 {
			pos = 0
		}
		if pos > len(siblings) {
			pos = len(siblings)
		}
		var before, after float64
		if pos > 0 {
			before = siblings[pos-1].Order
		}
		if pos < len(siblings) {
			after = siblings[pos].Order
		}

		order, ok := ident.OrderBetween(before, after)
		if !ok {
			// Midpoint precision exhausted: renormalize the whole
			// sibling set with the moved folder in place.
			keys := ident.Renormalize(len(siblings) + 1)
			updates := make(map[string]float64, len(siblings)+1)
			for i, sibling := range siblings[:pos] {
				updates[sibling.ID] = keys[i]
			}
			updates[folder.ID] = keys[pos]
			for i, sibling := range siblings[pos:] {
				updates[sibling.ID] = keys[pos+1+i]
			}
			if err := s.folderRepo.UpdateOrders(ctx, req.ProjectID, updates); err != nil {
				return err
			}
			order = keys[pos]
		}

		folder.ParentID = req.NewParentID
		folder.Order = order
		folder.UpdatedAt = time.Now()
		if err := s.folderRepo.Update(ctx, folder); err != nil {
			return err
		}
		moved = folder
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder moved",
		"id", moved.ID,
		"new_parent_id", moved.ParentID,
		"order", moved.Order,
	)
	return moved, nil
}

// DeleteFolder soft-deletes the folder and every descendant folder and
// contained case in one transaction.
func (s *folderService) DeleteFolder(ctx context.Context, req *services.DeleteFolderRequest) (*models.DeleteSummary, error) {
	if err := authorize(ctx, s.authorizer, req.ActorID, services.ActionDelete, req.FolderID); err != nil {
		return nil, err
	}

	summary := &models.DeleteSummary{}
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.folderRepo.LockProjectTree(ctx, req.ProjectID); err != nil {
			return err
		}
		if _, err := s.folderRepo.GetByID(ctx, req.FolderID, req.ProjectID); err != nil {
			return err
		}
		subtree, err := s.collectSubtree(ctx, req.FolderID, req.ProjectID)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := s.folderRepo.SoftDelete(ctx, req.ProjectID, subtree, now); err != nil {
			return err
		}
		cases, err := s.caseRepo.SoftDeleteByFolders(ctx, req.ProjectID, subtree, now)
		if err != nil {
			return err
		}
		summary.Folders = len(subtree)
		summary.Cases = cases
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder deleted",
		"id", req.FolderID,
		"folders", summary.Folders,
		"cases", summary.Cases,
	)
	return summary, nil
}

// GetFolder retrieves a folder with its computed path
func (s *folderService) GetFolder(ctx context.Context, id, projectID string) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, id, projectID)
	if err != nil {
		return nil, err
	}
	path, err := s.folderRepo.GetPath(ctx, &folder.ID, projectID)
	if err != nil {
		s.logger.Warn("failed to compute path", "folder_id", folder.ID, "error", err)
		folder.Path = folder.Name
	} else {
		folder.Path = path
	}
	return folder, nil
}

// ListChildren lists active child folders and cases
func (s *folderService) ListChildren(ctx context.Context, folderID *string, projectID string) (*services.FolderContents, error) {
	var folder *models.Folder
	var err error
	if folderID != nil && *folderID != "" {
		folder, err = s.folderRepo.GetByID(ctx, *folderID, projectID)
		if err != nil {
			return nil, err
		}
	} else {
		folderID = nil
	}

	childFolders, err := s.folderRepo.ListChildren(ctx, folderID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}
	cases, err := s.caseRepo.ListByFolder(ctx, folderID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return &services.FolderContents{
		Folder:  folder,
		Folders: childFolders,
		Cases:   cases,
	}, nil
}

// Tree returns the project's full active folder hierarchy with
// per-folder case counts
func (s *folderService) Tree(ctx context.Context, projectID string) ([]*models.FolderNode, error) {
	folders, err := s.folderRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cases, err := s.caseRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, c := range cases {
		if c.FolderID != nil {
			counts[*c.FolderID]++
		}
	}

	nodes := make(map[string]*models.FolderNode, len(folders))
	for i := range folders {
		f := &folders[i]
		nodes[f.ID] = &models.FolderNode{
			ID:        f.ID,
			Name:      f.Name,
			ParentID:  f.ParentID,
			Order:     f.Order,
			CaseCount: counts[f.ID],
			CreatedAt: f.CreatedAt,
		}
	}

	var roots []*models.FolderNode
	for i := range folders {
		node := nodes[folders[i].ID]
		if folders[i].ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*folders[i].ParentID]; ok {
			parent.Folders = append(parent.Folders, node)
		}
	}
	sortNodes(roots)
	return roots, nil
}

func sortNodes(nodes []*models.FolderNode) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].Order < nodes[j-1].Order; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
	for _, n := range nodes {
		sortNodes(n.Folders)
	}
}

// checkNoCycle rejects a move whose target parent is the folder itself
// or any of its descendants. The walk follows parent pointers from the
// target up to root, iteratively and depth-bounded, so a deep or
// corrupted tree can't overflow the stack or loop forever.
func (s *folderService) checkNoCycle(ctx context.Context, folderID string, newParentID *string, projectID string) error {
	if newParentID == nil {
		return nil // root is never a descendant
	}
	if *newParentID == folderID {
		return &domain.CycleError{Message: "cannot move a folder into itself"}
	}
	currentID := *newParentID
	for depth := 0; depth < config.MaxTreeDepth; depth++ {
		parent, err := s.folderRepo.GetByID(ctx, currentID, projectID)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == folderID {
			return &domain.CycleError{Message: "cannot move a folder into its own descendant"}
		}
		currentID = *parent.ParentID
	}
	return fmt.Errorf("folder tree deeper than %d levels", config.MaxTreeDepth)
}

// collectSubtree returns the folder id plus every descendant id,
// breadth-first over the project's active folder set.
func (s *folderService) collectSubtree(ctx context.Context, folderID, projectID string) ([]string, error) {
	folders, err := s.folderRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	children := make(map[string][]string)
	for _, f := range folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}

	subtree := []string{folderID}
	for i := 0; i < len(subtree); i++ {
		subtree = append(subtree, children[subtree[i]]...)
	}
	return subtree, nil
}

func (s *folderService) validateCreateRequest(req *services.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(config.MinFolderNameLength, config.MaxFolderNameLength),
		),
	)
}

func orders(folders []models.Folder) []float64 {
	out := make([]float64, len(folders))
	for i := range folders {
		out[i] = folders[i].Order
	}
	return out
}
