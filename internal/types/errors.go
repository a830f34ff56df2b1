package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants for the letter pipeline. Codes group into the
// failure taxonomy the workers act on: transient_* errors are retried by
// re-enqueueing the task, everything else escalates.
const (
	// Transient (retried with delay)
	ErrCodeTransientStorage  ErrorCode = "transient_storage_unavailable"
	ErrCodeTransientQueue    ErrorCode = "transient_queue_unavailable"
	ErrCodeTransientDatabase ErrorCode = "transient_database_unavailable"

	// Referential (fatal, alerting): reference resolved to zero or
	// multiple notifications.
	ErrCodeReferenceNotFound  ErrorCode = "reference_no_matching_notification"
	ErrCodeReferenceAmbiguous ErrorCode = "reference_multiple_notifications"

	// Storage inconsistency (fatal): a move partially completed or the
	// object was not where its notification status claims it should be.
	ErrCodeStorageInconsistency ErrorCode = "storage_object_misplaced"

	// Storage operation failure: the store refused or failed an
	// operation outright. Whether this is fatal depends on the caller:
	// a collation run skips the letter, a sanitised-letter move
	// escalates to technical-failure.
	ErrCodeStorageOperation ErrorCode = "storage_operation_failed"

	// Retry exhaustion (fatal escalation shared by every retryable task).
	ErrCodeRetryExhausted ErrorCode = "retry_attempts_exhausted"

	// Virus scan outcomes (fatal, alerting).
	ErrCodeVirusScanFailed ErrorCode = "virus_scan_failed"
	ErrCodeVirusScanError  ErrorCode = "virus_scan_error"

	// Payload handling
	ErrCodeSealedPayload ErrorCode = "sealed_payload_invalid"

	// Validation (400, admin surface)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"

	// Not found (404, admin surface)
	ErrCodeNotFoundNotification ErrorCode = "not_found_notification"
	ErrCodeNotFoundObject       ErrorCode = "not_found_object"

	// Internal
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// IsTransient reports whether the code belongs to the retryable class.
func (c ErrorCode) IsTransient() bool {
	return strings.HasPrefix(string(c), "transient_")
}

// HTTPStatus maps an ErrorCode to an HTTP status code for the admin
// surface. Returns 500 for unrecognized codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "transient_"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type for the pipeline. All
// domain errors are expressed as AppError so workers can classify them
// (transient vs fatal) with errors.As and the admin surface can map them
// to HTTP responses.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
