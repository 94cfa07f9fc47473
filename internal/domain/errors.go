package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling at the
// transport edge without the core depending on any transport.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource or version number was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// CycleError indicates a folder move that would create a cycle
	CycleError struct {
		Message string
	}

	// PermissionDeniedError indicates the permission predicate rejected the action
	PermissionDeniedError struct {
		Message string
	}

	// ConcurrentModificationError indicates an optimistic version check failed.
	// Retryable: callers may re-read and retry once before surfacing.
	ConcurrentModificationError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string               { return e.Message }
func (e *ValidationError) Error() string             { return e.Message }
func (e *CycleError) Error() string                  { return e.Message }
func (e *PermissionDeniedError) Error() string       { return e.Message }
func (e *ConcurrentModificationError) Error() string { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int               { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int             { return http.StatusBadRequest }
func (e *CycleError) StatusCode() int                  { return http.StatusConflict }
func (e *PermissionDeniedError) StatusCode() int       { return http.StatusForbidden }
func (e *ConcurrentModificationError) StatusCode() int { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
	ErrCycle      = errors.New("hierarchy cycle")
	ErrPermission = errors.New("permission denied")
	ErrConcurrent = errors.New("concurrent modification")
)

// Is hooks so errors.Is() matches typed errors against the sentinels.
func (e *NotFoundError) Is(target error) bool               { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool             { return target == ErrValidation }
func (e *CycleError) Is(target error) bool                  { return target == ErrCycle }
func (e *PermissionDeniedError) Is(target error) bool       { return target == ErrPermission }
func (e *ConcurrentModificationError) Is(target error) bool { return target == ErrConcurrent }

// ConflictError represents a uniqueness conflict with details about the
// existing resource (duplicate sibling folder name, duplicate active tag name).
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (folder, tag, project)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
