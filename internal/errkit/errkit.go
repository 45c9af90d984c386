// Package errkit defines the error-kind taxonomy shared across the HTTP API,
// orchestrator, and executors. Every domain error wraps one of the sentinel
// Kind values below so callers can classify failures with errors.Is without
// depending on concrete error types, the same sentinel-error idiom the
// engine package uses for ErrWorkflowNotFound/ErrWorkflowCompleted.
package errkit

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not_found")
	ErrInvalidState  = errors.New("invalid_state")
	ErrConflict      = errors.New("conflict_idempotent")
	ErrSafetyBlock   = errors.New("safety_block")
	ErrExecutorRemoteFailed      = errors.New("executor_remote_failed")
	ErrExecutorModelNotInstalled = errors.New("executor_model_not_installed")
	ErrWorkflowUnavailable       = errors.New("workflow_unavailable")
	ErrCallbackFailed            = errors.New("callback_failed")
	ErrInternal                  = errors.New("internal")
)

// Error wraps a sentinel Kind with request-specific detail while remaining
// transparent to errors.Is/errors.As against the Kind.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Is reports whether target is this error's Kind, so errors.Is(err,
// errkit.ErrNotFound) works without unwrapping through Cause.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// KindOf returns the sentinel Kind carried by err, or ErrInternal if err does
// not carry a recognized Kind.
func KindOf(err error) error {
	var kinds = []error{
		ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound,
		ErrInvalidState, ErrConflict, ErrSafetyBlock,
		ErrExecutorRemoteFailed, ErrExecutorModelNotInstalled,
		ErrWorkflowUnavailable, ErrCallbackFailed, ErrInternal,
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// HTTPStatus maps a Kind to the status code the API surface responds with.
func HTTPStatus(kind error) int {
	switch {
	case errors.Is(kind, ErrValidation):
		return 400
	case errors.Is(kind, ErrUnauthorized):
		return 401
	case errors.Is(kind, ErrForbidden):
		return 403
	case errors.Is(kind, ErrNotFound):
		return 404
	case errors.Is(kind, ErrInvalidState):
		return 409
	case errors.Is(kind, ErrWorkflowUnavailable):
		return 503
	default:
		return 500
	}
}
