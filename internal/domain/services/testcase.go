package services

import (
	"context"
	"encoding/json"

	"quiver/internal/domain/models"
)

// CaseService owns test case records and their version chains.
type CaseService interface {
	// CreateCase creates a case with version 1 written immediately
	CreateCase(ctx context.Context, req *CreateCaseRequest) (*models.TestCase, error)

	// UpdateCase applies a patch. A patch that changes versioned
	// content appends version BaseVersion+1 and advances the current
	// pointer atomically; a no-op patch returns the current version
	// without writing. Fails with ConcurrentModificationError when the
	// stored version no longer matches BaseVersion.
	UpdateCase(ctx context.Context, req *UpdateCaseRequest) (int, error)

	// MoveCase reassigns the containing folder. No version is created.
	MoveCase(ctx context.Context, req *MoveCaseRequest) error

	// DeleteCase soft-deletes the case, keeping its version history
	DeleteCase(ctx context.Context, req *DeleteCaseRequest) error

	// GetCase retrieves an active case
	GetCase(ctx context.Context, id, projectID string) (*models.TestCase, error)

	// LinkIssue attaches an external issue reference (idempotent)
	LinkIssue(ctx context.Context, req *IssueLinkRequest) error

	// UnlinkIssue detaches an external issue reference (idempotent)
	UnlinkIssue(ctx context.Context, req *IssueLinkRequest) error

	// BulkUpdate applies one patch across many cases. Permission is
	// checked once for the action class; per-case conflicts are
	// retried once, then reported per item without failing the batch.
	BulkUpdate(ctx context.Context, req *BulkUpdateRequest) []BulkResult

	// BulkMove moves many cases into one folder
	BulkMove(ctx context.Context, req *BulkMoveRequest) []BulkResult

	// BulkDelete soft-deletes many cases
	BulkDelete(ctx context.Context, req *BulkDeleteRequest) []BulkResult
}

// CreateCaseRequest represents a case creation request
type CreateCaseRequest struct {
	ActorID    string                       `json:"actor_id"`
	ProjectID  string                       `json:"project_id"`
	FolderID   *string                      `json:"folder_id,omitempty"` // nil = project root
	TemplateID string                       `json:"template_id"`
	Name       string                       `json:"name"`
	State      string                       `json:"state,omitempty"`
	Estimate   string                       `json:"estimate,omitempty"`
	Automated  bool                         `json:"automated,omitempty"`
	Steps      []models.Step                `json:"steps,omitempty"`
	Fields     map[string]models.FieldValue `json:"fields,omitempty"`
	Document   json.RawMessage              `json:"document,omitempty"`
}

// CasePatch holds the optional versioned-content edits of an update.
// Nil members leave the field untouched. A nil map entry in Fields
// clears that custom field.
type CasePatch struct {
	Name       *string                       `json:"name,omitempty"`
	TemplateID *string                       `json:"template_id,omitempty"`
	State      *string                       `json:"state,omitempty"`
	Estimate   *string                       `json:"estimate,omitempty"`
	Automated  *bool                         `json:"automated,omitempty"`
	Steps      *[]models.Step                `json:"steps,omitempty"`
	Fields     map[string]*models.FieldValue `json:"fields,omitempty"`
	Document   *json.RawMessage              `json:"document,omitempty"`
}

// UpdateCaseRequest represents a versioned case edit
type UpdateCaseRequest struct {
	ActorID     string    `json:"actor_id"`
	ProjectID   string    `json:"project_id"`
	CaseID      string    `json:"case_id"`
	BaseVersion int       `json:"base_version"` // current_version observed by the caller
	Patch       CasePatch `json:"patch"`
}

// MoveCaseRequest reassigns a case's folder
type MoveCaseRequest struct {
	ActorID     string  `json:"actor_id"`
	ProjectID   string  `json:"project_id"`
	CaseID      string  `json:"case_id"`
	NewFolderID *string `json:"new_folder_id,omitempty"` // nil = project root
}

// DeleteCaseRequest soft-deletes a case
type DeleteCaseRequest struct {
	ActorID   string `json:"actor_id"`
	ProjectID string `json:"project_id"`
	CaseID    string `json:"case_id"`
}

// IssueLinkRequest attaches or detaches an external issue reference
type IssueLinkRequest struct {
	ActorID   string          `json:"actor_id"`
	ProjectID string          `json:"project_id"`
	CaseID    string          `json:"case_id"`
	Issue     models.IssueRef `json:"issue"`
}

// BulkResult reports one item's outcome in a bulk operation.
type BulkResult struct {
	CaseID string `json:"case_id"`
	Err    error  `json:"-"`
}

// Outcome renders the result for callers that only need the kind.
func (r BulkResult) Outcome() string {
	if r.Err == nil {
		return "success"
	}
	return r.Err.Error()
}

// BulkUpdateRequest applies one patch to many cases
type BulkUpdateRequest struct {
	ActorID   string    `json:"actor_id"`
	ProjectID string    `json:"project_id"`
	CaseIDs   []string  `json:"case_ids"`
	Patch     CasePatch `json:"patch"`
}

// BulkMoveRequest moves many cases into one folder
type BulkMoveRequest struct {
	ActorID     string   `json:"actor_id"`
	ProjectID   string   `json:"project_id"`
	CaseIDs     []string `json:"case_ids"`
	NewFolderID *string  `json:"new_folder_id,omitempty"`
}

// BulkDeleteRequest soft-deletes many cases
type BulkDeleteRequest struct {
	ActorID   string   `json:"actor_id"`
	ProjectID string   `json:"project_id"`
	CaseIDs   []string `json:"case_ids"`
}
