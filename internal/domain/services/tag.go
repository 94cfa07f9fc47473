package services

import (
	"context"

	"quiver/internal/domain/models"
)

// TagService owns the global, case-insensitive, soft-deletable label
// namespace and attachment of labels to cases.
type TagService interface {
	// CreateOrRestore creates a tag, or restores the soft-deleted tag
	// holding the same name (case-insensitively) under its original
	// id. An active name match fails with ConflictError.
	CreateOrRestore(ctx context.Context, req *TagRequest) (*models.Tag, error)

	// Rename renames a tag under the same collision rule. A
	// soft-deleted holder of the target name frees the name without
	// merging histories.
	Rename(ctx context.Context, req *RenameTagRequest) (*models.Tag, error)

	// Delete soft-deletes a tag. Attachments remain historically
	// associated; the tag just disappears from active listings.
	Delete(ctx context.Context, req *DeleteTagRequest) error

	// Attach attaches a tag to a case. Idempotent; no version is created.
	Attach(ctx context.Context, req *AttachTagRequest) error

	// Detach detaches a tag from a case. Idempotent.
	Detach(ctx context.Context, req *AttachTagRequest) error

	// ListActive lists active tags ordered by name
	ListActive(ctx context.Context) ([]models.Tag, error)
}

// TagRequest creates or restores a tag by name
type TagRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
}

// RenameTagRequest renames an existing tag
type RenameTagRequest struct {
	ActorID string `json:"actor_id"`
	TagID   string `json:"tag_id"`
	NewName string `json:"new_name"`
}

// DeleteTagRequest soft-deletes a tag
type DeleteTagRequest struct {
	ActorID string `json:"actor_id"`
	TagID   string `json:"tag_id"`
}

// AttachTagRequest attaches or detaches a tag on a case
type AttachTagRequest struct {
	ActorID   string `json:"actor_id"`
	ProjectID string `json:"project_id"`
	CaseID    string `json:"case_id"`
	TagID     string `json:"tag_id"`
}
