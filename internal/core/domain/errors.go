package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes have the form TP-<AREA>-<NNNN>; the numeric part mirrors the HTTP
// status the error maps to.
type DomainError struct {
	Code    string // Error code (e.g., "TP-STORE-5030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrMalformedInput indicates a credential line is missing required fields.
	ErrMalformedInput = NewDomainError("TP-ARG-4001", "malformed credential line")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TP-ARG-4002", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TP-ARG-4003", "missing required argument")
)

// ============================================================================
// Exchange Errors (EXCH)
// ============================================================================

var (
	// ErrExchangeFailed indicates the upstream authenticator produced no token.
	ErrExchangeFailed = NewDomainError("TP-EXCH-5020", "token exchange failed")

	// ErrRateLimited indicates the upstream authenticator throttled the request.
	ErrRateLimited = NewDomainError("TP-EXCH-4290", "upstream rate limited")
)

// ============================================================================
// Sink Errors (SINK)
// ============================================================================

var (
	// ErrSinkFailed indicates a token could not be handed to storage.
	ErrSinkFailed = NewDomainError("TP-SINK-5021", "token sink failed")
)

// ============================================================================
// Store Errors (STORE)
// ============================================================================

var (
	// ErrStoreCorrupt indicates the persisted document could not be parsed.
	// The store recovers from it locally; it is only surfaced through logs and metrics.
	ErrStoreCorrupt = NewDomainError("TP-STORE-5001", "token store document corrupt")

	// ErrStoreUnavailable indicates persistence I/O failed.
	ErrStoreUnavailable = NewDomainError("TP-STORE-5030", "token store unavailable")

	// ErrStoreClosed indicates the store no longer accepts requests.
	ErrStoreClosed = NewDomainError("TP-STORE-5031", "token store closed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TP-SYS-5000", "internal server error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("TP-SYS-4000", "bad request")
)
