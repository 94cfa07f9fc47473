package models

import (
	"time"
)

// IssueRef is a weak reference to an issue in an external tracker. The
// store only holds the reference; resolution is external.
type IssueRef struct {
	ExternalID  string `json:"external_id" yaml:"external_id"`
	TrackerKind string `json:"tracker_kind" yaml:"tracker_kind"`
	Resolved    bool   `json:"resolved" yaml:"resolved"`
}

// Key identifies the reference within a case's issue set.
func (r IssueRef) Key() string {
	return r.TrackerKind + ":" + r.ExternalID
}

// TestCase is the artifact record. Versioned content lives in Version
// rows; the row itself carries the current copy of that content plus
// live bookkeeping (tags, issues) that is never versioned.
type TestCase struct {
	ID             string                `json:"id" db:"id"`
	ProjectID      string                `json:"project_id" db:"project_id"`
	FolderID       *string               `json:"folder_id" db:"folder_id"` // NULL = project root
	TemplateID     string                `json:"template_id" db:"template_id"`
	Name           string                `json:"name" db:"name"`
	State          string                `json:"state" db:"state"`
	Estimate       string                `json:"estimate" db:"estimate"`
	CreatorID      string                `json:"creator_id" db:"creator_id"`
	Automated      bool                  `json:"automated" db:"automated"`
	CurrentVersion int                   `json:"current_version" db:"current_version"`
	Order          float64               `json:"order" db:"sort_order"`
	Tags           []string              `json:"tags"`   // tag ids, live reference
	Issues         []IssueRef            `json:"issues"` // live reference
	Fields         map[string]FieldValue `json:"fields"` // current custom field values by field id
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time            `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Active reports whether the case has not been soft-deleted.
func (c *TestCase) Active() bool {
	return c.DeletedAt == nil
}

// HasTag reports whether the tag id is currently attached.
func (c *TestCase) HasTag(tagID string) bool {
	for _, id := range c.Tags {
		if id == tagID {
			return true
		}
	}
	return false
}

// HasIssue reports whether the issue reference is currently linked.
func (c *TestCase) HasIssue(key string) bool {
	for _, ref := range c.Issues {
		if ref.Key() == key {
			return true
		}
	}
	return false
}
