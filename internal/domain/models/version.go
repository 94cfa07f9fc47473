package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Step is one entry in a case's ordered step list. Steps referencing a
// shared group carry only the reference; the group's own entries are
// resolved at render time and are not part of the version content.
type Step struct {
	ID            string          `json:"id" yaml:"id"` // stable across versions; may be empty for legacy rows
	Action        string          `json:"action" yaml:"action"`
	Data          string          `json:"data,omitempty" yaml:"data,omitempty"`
	Expected      string          `json:"expected,omitempty" yaml:"expected,omitempty"`
	SharedGroupID *string         `json:"shared_group_id,omitempty" yaml:"shared_group_id,omitempty"`
	Document      json.RawMessage `json:"document,omitempty" yaml:"-"` // opaque rich-text blob
}

// Equal compares step content, ignoring the stable id.
func (s Step) Equal(o Step) bool {
	if s.Action != o.Action || s.Data != o.Data || s.Expected != o.Expected {
		return false
	}
	if (s.SharedGroupID == nil) != (o.SharedGroupID == nil) {
		return false
	}
	if s.SharedGroupID != nil && *s.SharedGroupID != *o.SharedGroupID {
		return false
	}
	return bytes.Equal(s.Document, o.Document)
}

// VersionContent is the versioned portion of a test case. Tags and issue
// links are live references and deliberately absent.
type VersionContent struct {
	Name       string                `json:"name" yaml:"name"`
	TemplateID string                `json:"template_id" yaml:"template_id"`
	State      string                `json:"state" yaml:"state"`
	Estimate   string                `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Automated  bool                  `json:"automated" yaml:"automated"`
	Steps      []Step                `json:"steps,omitempty" yaml:"steps,omitempty"`
	Fields     map[string]FieldValue `json:"fields,omitempty" yaml:"fields,omitempty"`
	Document   json.RawMessage       `json:"document,omitempty" yaml:"-"` // opaque rich-text blob, compared by equality
}

// Clone returns a deep copy so stored versions stay immutable when the
// caller keeps mutating its working content.
func (c VersionContent) Clone() VersionContent {
	out := c
	if c.Steps != nil {
		out.Steps = make([]Step, len(c.Steps))
		copy(out.Steps, c.Steps)
		for i := range out.Steps {
			if c.Steps[i].SharedGroupID != nil {
				id := *c.Steps[i].SharedGroupID
				out.Steps[i].SharedGroupID = &id
			}
			out.Steps[i].Document = append(json.RawMessage(nil), c.Steps[i].Document...)
		}
	}
	if c.Fields != nil {
		out.Fields = make(map[string]FieldValue, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	out.Document = append(json.RawMessage(nil), c.Document...)
	return out
}

// Version is an immutable numbered snapshot of a case's versioned content.
type Version struct {
	CaseID    string         `json:"case_id" db:"case_id"`
	Number    int            `json:"number" db:"number"` // 1..N, contiguous per case
	Content   VersionContent `json:"content" db:"content"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	CreatedBy string         `json:"created_by" db:"created_by"`
}

// ChangeKind classifies one entry of a version diff.
type ChangeKind string

const (
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeChanged   ChangeKind = "changed"
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
)

// Change is one field-level diff record. For scalar fields Old/New hold
// the two values; for step entries they hold *Step.
type Change struct {
	Field string     `json:"field"`
	Kind  ChangeKind `json:"kind"`
	Old   any        `json:"old_value,omitempty"`
	New   any        `json:"new_value,omitempty"`
}
