package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "title", Message: "Title is required"}, KindValidation},
		{"wrapped op error", fmt.Errorf("ctx: %w", NewForbiddenError("event.update", "no")), KindForbidden},
		{"not found", NewNotFoundError("event.get", "Event not found"), KindNotFound},
		{"unauthenticated", NewUnauthenticatedError("event.list"), KindUnauthenticated},
		{"plain error", errors.New("boom"), KindRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRemoteError_UsesAPIErrorMessage(t *testing.T) {
	err := NewRemoteError("event.create", fmt.Errorf("call: %w", NewDocumentConflictError("favorites")))

	if err.Message != NewDocumentConflictError("favorites").Message {
		t.Errorf("Message = %q, want the APIError message only", err.Message)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeDocumentConflict {
		t.Errorf("remote error should unwrap to the APIError, got %v", apiErr)
	}
	if ErrorMessage(err) != err.Message {
		t.Errorf("ErrorMessage = %q, want %q", ErrorMessage(err), err.Message)
	}
}

func TestRecoverAsRemote(t *testing.T) {
	call := func() (err error) {
		defer RecoverAsRemote("favorite.list", &err)
		panic("store exploded")
	}

	err := call()
	if KindOf(err) != KindRemote {
		t.Fatalf("kind = %q, want remote", KindOf(err))
	}
	if err.Error() != "store exploded" {
		t.Errorf("message = %q, want %q", err.Error(), "store exploded")
	}
}

func TestRecoverAsRemote_NoPanicKeepsError(t *testing.T) {
	sentinel := errors.New("unchanged")
	call := func() (err error) {
		defer RecoverAsRemote("favorite.list", &err)
		return sentinel
	}

	if err := call(); !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestDocumentErrors_ReadAndWriteMessagesDiffer(t *testing.T) {
	missing := NewDocumentMissingError("events", "e1")
	notFound := NewDocumentNotFoundError("events", "e1")

	if missing.Code != ErrCodeDocumentNotFound || notFound.Code != ErrCodeDocumentNotFound {
		t.Errorf("codes = %q / %q, want %q for both", missing.Code, notFound.Code, ErrCodeDocumentNotFound)
	}
	if missing.Message != "Document not found: events/e1" {
		t.Errorf("read message = %q", missing.Message)
	}
	if notFound.Message != "No document to update: events/e1" {
		t.Errorf("update message = %q", notFound.Message)
	}
}
