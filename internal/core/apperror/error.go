// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes form the closed taxonomy of the ledger core.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInsufficientStock = "INSUFFICIENT_STOCK"

	// Optimistic-concurrency races (409), caller-retryable
	CodeVersionConflict       = "VERSION_CONFLICT"
	CodeInsertConflict        = "INSERT_CONFLICT"
	CodeRecalculationConflict = "RECALCULATION_CONFLICT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400).
// Raised before any store access: a rejected candidate is never partially applied.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInsufficientStock is returned when an outgoing quantity exceeds the
// available balance under the default policy. No mutation occurs.
func NewInsufficientStock(productID string, requested, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewVersionConflict signals a lost optimistic-concurrency race on a single
// entry: its version moved since the caller read it.
func NewVersionConflict(entryID any, expectedVersion int64) *AppError {
	return &AppError{
		Code:       CodeVersionConflict,
		Message:    "Entry was modified concurrently",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entry_id": entryID, "expected_version": expectedVersion},
	}
}

// NewInsertConflict signals that a live insert raced another writer in the
// same scope. The insert made no partial writes; the caller may retry.
func NewInsertConflict(scope string) *AppError {
	return &AppError{
		Code:       CodeInsertConflict,
		Message:    "Concurrent insert detected for scope",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"scope": scope},
	}
}

// NewRecalculationConflict aborts a replay sweep whose CAS lost to a
// concurrent writer. The sweep must be retried for the whole scope.
func NewRecalculationConflict(scope string, entryID any) *AppError {
	return &AppError{
		Code:       CodeRecalculationConflict,
		Message:    "Recalculation raced a concurrent writer, retry the sweep",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"scope": scope, "entry_id": entryID},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsVersionConflict checks if error is CodeVersionConflict
func IsVersionConflict(err error) bool {
	return IsCode(err, CodeVersionConflict)
}

// IsRetryable reports whether the error is one of the optimistic-concurrency
// conflicts that callers may retry.
func IsRetryable(err error) bool {
	return IsCode(err, CodeVersionConflict) ||
		IsCode(err, CodeInsertConflict) ||
		IsCode(err, CodeRecalculationConflict)
}
