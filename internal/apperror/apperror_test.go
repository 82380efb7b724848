package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("account", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("id", "id is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Storage wraps ErrStorage",
			err:       Storage("reading account", errors.New("disk full")),
			target:    ErrStorage,
			wantMatch: true,
		},
		{
			name:      "RateLimited wraps ErrRateLimited",
			err:       RateLimited("GitHub"),
			target:    ErrRateLimited,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("npm registry", errors.New("502")),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("account", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Storage does NOT match ErrUnavailable",
			err:       Storage("writing account", errors.New("io error")),
			target:    ErrUnavailable,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorsIs_ThroughWrapping(t *testing.T) {
	// Services wrap store errors with fmt.Errorf("...: %w", err); the kind
	// must survive the extra layer.
	inner := Storage("reading account", errors.New("database is locked"))
	outer := fmt.Errorf("loading subscriptions: %w", inner)

	if !errors.Is(outer, ErrStorage) {
		t.Error("wrapped Storage error should match ErrStorage")
	}

	var appErr *AppError
	if !errors.As(outer, &appErr) {
		t.Fatal("errors.As should extract *AppError from the chain")
	}
	if appErr.Message == "" {
		t.Error("extracted AppError should keep its message")
	}
}

func TestValidationFailed_Field(t *testing.T) {
	err := ValidationFailed("fullName", "repo id or fullName is required")

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As should extract *AppError")
	}
	if appErr.Field != "fullName" {
		t.Errorf("Field = %q, want %q", appErr.Field, "fullName")
	}
	if err.Error() != "repo id or fullName is required" {
		t.Errorf("Error() = %q, want the human-readable message", err.Error())
	}
}
