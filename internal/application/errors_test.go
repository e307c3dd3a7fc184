package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"scheduled_at": "bad", "type": "bad"}}
	if got := withFields.Error(); got != "validation failed: scheduled_at, type" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndErrOrNil(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	if v.errOrNil() != nil {
		t.Fatalf("expected nil error without fields")
	}

	v.add("first", "value")
	if got := v.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}
	var target *ValidationError
	if err := v.errOrNil(); !errors.As(err, &target) || target != v {
		t.Fatalf("expected errOrNil to return the validation error, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: ErrUnauthorized, want: "unauthorized"},
		{err: fmt.Errorf("wrap: %w", ErrNotFound), want: "not_found"},
		{err: ErrViewNotFound, want: "view_not_found"},
		{err: ErrAlreadyExists, want: "already_exists"},
		{err: ErrInvalidCredentials, want: "invalid_credentials"},
		{err: ErrTokenExpired, want: "token_expired"},
		{err: ErrTokenRevoked, want: "token_revoked"},
		{err: fmt.Errorf("%w: confirmed to confirmed", ErrInvalidTransition), want: "invalid_transition"},
		{err: ErrNotJoinable, want: "not_joinable"},
		{err: context.Canceled, want: "canceled"},
		{err: &ValidationError{FieldErrors: map[string]string{"a": "b"}}, want: "validation"},
		{err: errors.New("boom"), want: "unexpected"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
