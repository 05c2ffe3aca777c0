// Package apperror defines the error kinds shared by every layer.
//
// Each kind is a sentinel error. Constructors return an *AppError that wraps
// the sentinel, so callers match with errors.Is and read details with errors.As:
//
//	if errors.Is(err, apperror.ErrNotFound) { ... }
//
// MATCH MOST SPECIFIC FIRST:
// When more than one kind could apply, switch on the narrow ones before the
// general arm. A storage failure that is not one of these kinds is just a
// wrapped error and lands in the default arm.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrEncryption       = errors.New("encryption failure")
	ErrNoCurrentUser    = errors.New("no current user")
	ErrExternalProvider = errors.New("external provider failure")
)

type AppError struct {
	Err      error  // actual error
	Message  string // Human-readable error message
	Field    string // Optional: field causing the error
	Resource string // Optional: entity the error is about ("user", "recipe", ...)
	Cause    error  // Optional: lower-level error, kept for logs
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:      ErrNotFound,
		Message:  fmt.Sprintf("%s not found with id %s", resource, id),
		Resource: resource,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidArgument is ValidationFailed under the name the data layer uses for
// malformed offsets, limits and enum values.
func InvalidArgument(field, message string) *AppError {
	return ValidationFailed(field, message)
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:      ErrConflict,
		Message:  fmt.Sprintf("%s conflict with id %s", resource, id),
		Resource: resource,
	}
}

// Duplicate reports a uniqueness violation detected before insert.
func Duplicate(resource, id string) *AppError {
	return &AppError{
		Err:      ErrConflict,
		Message:  fmt.Sprintf("%s already exists: %s", resource, id),
		Resource: resource,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Encryption(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrEncryption,
		Message: message,
		Cause:   cause,
	}
}

func NoCurrentUser() *AppError {
	return &AppError{
		Err:     ErrNoCurrentUser,
		Message: "no user logged in",
	}
}

// ExternalProvider wraps a failed call to the recipe provider. op names the
// provider operation, e.g. "recipes/complexSearch".
func ExternalProvider(op string, cause error) *AppError {
	msg := fmt.Sprintf("external provider call %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &AppError{
		Err:     ErrExternalProvider,
		Message: msg,
		Cause:   cause,
	}
}

// ResourceOf returns the Resource of the first *AppError in err's chain.
func ResourceOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Resource
	}
	return ""
}
