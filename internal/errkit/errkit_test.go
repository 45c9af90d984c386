package errkit

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(ErrNotFound, "job abc123 not found")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is not to match unrelated kind")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrExecutorRemoteFailed, "remote executor unreachable", cause)
	if !errors.Is(err, ErrExecutorRemoteFailed) {
		t.Fatal("expected wrapped error to match its kind")
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("mystery failure")); !errors.Is(got, ErrInternal) {
		t.Fatalf("expected ErrInternal for unclassified error, got %v", got)
	}
	if got := KindOf(New(ErrConflict, "dup")); !errors.Is(got, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrValidation:          400,
		ErrUnauthorized:        401,
		ErrForbidden:           403,
		ErrNotFound:            404,
		ErrInvalidState:        409,
		ErrWorkflowUnavailable: 503,
		ErrInternal:            500,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", kind, got, want)
		}
	}
}
