package services

import (
	"errors"
	"fmt"

	"github.com/influencer-marketplace/backend/internal/storage"
)

// ErrorKind classifies every failure the workflow engine can return.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindDuplicate          ErrorKind = "duplicate_application"
	KindConflict           ErrorKind = "conflict"
	KindNotAccepting       ErrorKind = "not_accepting_applications"
	KindValidation         ErrorKind = "validation_failed"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
)

// WorkflowError is the typed result surfaced to callers of the engine.
type WorkflowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// Is matches any WorkflowError of the same kind, so errors.Is(err, ErrForbidden)
// works regardless of message.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated    = &WorkflowError{Kind: KindUnauthenticated}
	ErrForbidden          = &WorkflowError{Kind: KindForbidden}
	ErrNotFound           = &WorkflowError{Kind: KindNotFound}
	ErrInvalidTransition  = &WorkflowError{Kind: KindInvalidTransition}
	ErrDuplicate          = &WorkflowError{Kind: KindDuplicate}
	ErrConflict           = &WorkflowError{Kind: KindConflict}
	ErrNotAccepting       = &WorkflowError{Kind: KindNotAccepting}
	ErrValidation         = &WorkflowError{Kind: KindValidation}
	ErrStorageUnavailable = &WorkflowError{Kind: KindStorageUnavailable}
)

func newError(kind ErrorKind, format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a WorkflowError.
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// fromStorage converts a storage failure into a WorkflowError. onDuplicate is
// the kind a unique violation maps to for this operation.
func fromStorage(err error, what string, onDuplicate ErrorKind) error {
	if err == nil {
		return nil
	}
	var we *WorkflowError
	if errors.As(err, &we) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &WorkflowError{Kind: KindNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, storage.ErrStaleStatus):
		return &WorkflowError{Kind: KindConflict, Message: what + " was modified concurrently", Err: err}
	case errors.Is(err, storage.ErrDuplicate):
		return &WorkflowError{Kind: onDuplicate, Message: what + " already exists", Err: err}
	default:
		return &WorkflowError{Kind: KindStorageUnavailable, Message: "storage unavailable", Err: err}
	}
}
