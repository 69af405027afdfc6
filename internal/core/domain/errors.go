// Package domain defines the core domain models for the channel hierarchy.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a hierarchy error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "CH-CHAN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
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

// Detailf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) Detailf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
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
// Hierarchy Errors
// ============================================================================

var (
	// ErrValidation indicates a malformed or impossible input, such as a
	// calendar date that does not exist.
	ErrValidation = NewDomainError("CH-DATE-4000", "validation failed")

	// ErrDuplicate indicates the key already exists in a directory.
	ErrDuplicate = NewDomainError("CH-CHAN-4090", "channel already exists")

	// ErrNotFound indicates an unknown actor or date. For daily channels it
	// also covers a wrong password, so callers cannot tell the two apart.
	ErrNotFound = NewDomainError("CH-CHAN-4040", "channel not found")

	// ErrBackend indicates a network failure, a malformed remote directory
	// or a signature failure.
	ErrBackend = NewDomainError("CH-BACK-5020", "backend failure")

	// ErrCrypto indicates that a sealed state could not be authenticated.
	ErrCrypto = NewDomainError("CH-CRYP-4010", "state authentication failed")
)

// ============================================================================
// Backend Errors
// ============================================================================

var (
	// ErrAuth is returned by the backend when a remote import is attempted
	// with a bad password or the remote state is malformed.
	ErrAuth = NewDomainError("CH-AUTH-4010", "channel authentication failed")
)

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDuplicate reports whether err is a duplicate error.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsBackend reports whether err is a backend error.
func IsBackend(err error) bool { return errors.Is(err, ErrBackend) }

// IsCrypto reports whether err is a crypto error.
func IsCrypto(err error) bool { return errors.Is(err, ErrCrypto) }

// IsAuth reports whether err is a backend authentication error.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }
