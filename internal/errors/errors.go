package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Funnier error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrNotConfigured   ErrorCode = "NOT_CONFIGURED"   // 412
	ErrDeserialization ErrorCode = "DESERIALIZATION"  // 422
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrTransport       ErrorCode = "TRANSPORT"        // 502
	ErrStorage         ErrorCode = "STORAGE"          // 507
)

// FunnierError represents a structured error with code, status, and details.
type FunnierError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error // underlying cause, may be nil
}

// Error implements the error interface.
func (e *FunnierError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FunnierError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FunnierError {
	return &FunnierError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a photo cannot be found.
func NewNotFound(identifier string) *FunnierError {
	return &FunnierError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("photo not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNotConfigured creates a 412 error for a missing configuration value.
func NewNotConfigured(field string) *FunnierError {
	return &FunnierError{
		Code:    ErrNotConfigured,
		Status:  412,
		Message: fmt.Sprintf("%s is not configured", field),
		Details: map[string]any{"field": field},
	}
}

// NewDeserialization creates a 422 error for a persisted value that could not be decoded.
func NewDeserialization(key string, err error) *FunnierError {
	return &FunnierError{
		Code:    ErrDeserialization,
		Status:  422,
		Message: fmt.Sprintf("failed to decode %s: %v", key, err),
		Details: map[string]any{"key": key},
		Err:     err,
	}
}

// NewTransport creates a 502 error for a failed remote call.
func NewTransport(op string, err error) *FunnierError {
	return &FunnierError{
		Code:    ErrTransport,
		Status:  502,
		Message: fmt.Sprintf("%s: %v", op, err),
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewStorage creates a 507 error for a failed local write or read.
func NewStorage(op string, err error) *FunnierError {
	return &FunnierError{
		Code:    ErrStorage,
		Status:  507,
		Message: fmt.Sprintf("%s: %v", op, err),
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *FunnierError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &FunnierError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		Err:     err,
	}
}

// Is checks if an error is, or wraps, a FunnierError with the given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FunnierError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}

// As returns the FunnierError in err's chain, if any.
func As(err error) (*FunnierError, bool) {
	var fErr *FunnierError
	if stderrors.As(err, &fErr) {
		return fErr, true
	}
	return nil, false
}
