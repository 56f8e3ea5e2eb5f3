package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Tabby error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrConflict          ErrorCode = "CONFLICT"           // 409
	ErrValidationFailed  ErrorCode = "VALIDATION_FAILED"  // 422
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrTransactionFailed ErrorCode = "TRANSACTION_FAILED" // 500
	ErrUpstreamFailed    ErrorCode = "UPSTREAM_FAILED"    // 502
)

// TabbyError represents a structured error with code, status, and details.
type TabbyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TabbyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TabbyError {
	return &TabbyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing row.
// kind names the table ("workspace", "tab", ...).
func NewNotFound(kind string, identifier any) *TabbyError {
	return &TabbyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %v", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates a 409 error for uniqueness and ordering conflicts.
func NewConflict(msg string) *TabbyError {
	return &TabbyError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewValidationFailed creates a 422 error carrying every violated invariant.
// violations is stored as-is so callers can render the full list.
func NewValidationFailed(msg string, violations any, count int) *TabbyError {
	return &TabbyError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: fmt.Sprintf("%s (%d violations)", msg, count),
		Details: map[string]any{"violations": violations},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by the caller.
func NewCancelled(operation string) *TabbyError {
	return &TabbyError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewTransactionFailed creates a 500 error when a store transaction could not
// be started or committed. The store has already rolled back.
func NewTransactionFailed(err error) *TabbyError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TabbyError{
		Code:    ErrTransactionFailed,
		Status:  500,
		Message: "transaction failed and was rolled back",
		Details: details,
	}
}

// NewUpstreamFailed creates a 502 error for failures of an external collaborator.
func NewUpstreamFailed(collaborator string, err error) *TabbyError {
	details := map[string]any{"collaborator": collaborator}
	msg := fmt.Sprintf("%s call failed", collaborator)
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TabbyError{
		Code:    ErrUpstreamFailed,
		Status:  502,
		Message: msg,
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message is generic; the cause is kept in Details for logging.
func NewInternal(err error) *TabbyError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TabbyError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a TabbyError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TabbyError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As is a convenience wrapper around the standard library errors.As.
func As(err error) (*TabbyError, bool) {
	var tErr *TabbyError
	if stderrors.As(err, &tErr) {
		return tErr, true
	}
	return nil, false
}
