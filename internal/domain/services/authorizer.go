package services

import (
	"context"
)

// Action classifies a mutating operation for permission checks.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionMove   Action = "move"
	ActionDelete Action = "delete"
	ActionTag    Action = "tag"
)

// Authorizer is the permission predicate consumed before every mutating
// operation. Policy definition lives outside this module; a false
// result surfaces as PermissionDeniedError, never as a silent no-op.
type Authorizer interface {
	CanPerform(ctx context.Context, actorID string, action Action, targetID string) (bool, error)
}
