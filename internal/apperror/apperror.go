package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error leaving a service or store wraps exactly one
// of these, so callers can branch with errors.Is without knowing the layer
// that produced it. The HTTP layer maps each kind to a status code.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrStorage     = errors.New("storage failure")
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("upstream unavailable")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // human-readable error message
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Storage wraps a key-value store failure. op names the failed operation
// ("reading account", "writing account") and cause is the driver error.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %v", ErrStorage, op, cause),
		Message: fmt.Sprintf("storage failure while %s", op),
	}
}

// RateLimited indicates an upstream API rejected us with a quota error.
// HTTP handlers map this to 429 so the client can show a retry-later notice.
func RateLimited(service string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: fmt.Sprintf("%s API rate limit exceeded, try again later", service),
	}
}

// Unavailable indicates an upstream API failed for a reason other than
// rate limiting or a missing resource.
func Unavailable(service string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %v", ErrUnavailable, cause),
		Message: fmt.Sprintf("%s is currently unavailable", service),
	}
}
