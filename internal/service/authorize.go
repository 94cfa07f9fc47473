package service

import (
	"context"
	"fmt"

	"quiver/internal/domain"
	"quiver/internal/domain/services"
)

// authorize consults the permission predicate and converts a false
// result into PermissionDeniedError. Never a silent no-op.
func authorize(ctx context.Context, auth services.Authorizer, actorID string, action services.Action, targetID string) error {
	ok, err := auth.CanPerform(ctx, actorID, action, targetID)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return &domain.PermissionDeniedError{
			Message: fmt.Sprintf("actor %s may not %s %s", actorID, action, targetID),
		}
	}
	return nil
}

// AllowAllAuthorizer grants every action. Used by tests and the
// offline CLI, where policy enforcement lives elsewhere.
type AllowAllAuthorizer struct{}

// CanPerform implements services.Authorizer
func (AllowAllAuthorizer) CanPerform(ctx context.Context, actorID string, action services.Action, targetID string) (bool, error) {
	return true, nil
}

// DenyAction wraps an authorizer, rejecting one action class. Test
// helper for permission propagation.
type DenyAction struct {
	Inner  services.Authorizer
	Action services.Action
}

// CanPerform implements services.Authorizer
func (d DenyAction) CanPerform(ctx context.Context, actorID string, action services.Action, targetID string) (bool, error) {
	if action == d.Action {
		return false, nil
	}
	return d.Inner.CanPerform(ctx, actorID, action, targetID)
}
