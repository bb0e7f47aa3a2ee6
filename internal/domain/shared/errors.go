// Package shared contains common domain types, errors, events, and value objects
// used across the domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors for errors.Is() checks.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrVersionConflict = errors.New("version conflict")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "progress", "recommendation", "storage"
	Op      string // operation that failed, e.g. "RecordAction"
	Kind    error  // base error for errors.Is() checks
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error, falling back to the kind.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Progress domain errors
var (
	ErrProgressNotFound    = NewDomainError("progress", "Load", ErrNotFound, "progress record not found")
	ErrUnknownAction       = NewDomainError("progress", "RecordAction", ErrInvalidInput, "unknown action kind")
	ErrUnknownChallenge    = NewDomainError("progress", "UpdateChallenge", ErrNotFound, "unknown challenge")
	ErrInvalidMagnitude    = NewDomainError("progress", "RecordAction", ErrNegativeValue, "action magnitude must be a number between 0 and 1e9")
	ErrInvalidInstallation = NewDomainError("progress", "Validate", ErrInvalidID, "invalid installation ID")
	ErrStaleVersion        = NewDomainError("progress", "Save", ErrVersionConflict, "progress record was modified concurrently")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Dismiss", ErrNotFound, "notification not found")
)

// Recommendation errors
var (
	ErrRecommendationUnavailable = NewDomainError("recommendation", "Fetch", ErrServiceUnavailable, "recommendation service is unavailable")
	ErrRecommendationBadResponse = NewDomainError("recommendation", "Parse", ErrInvalidFormat, "invalid response from recommendation service")
	ErrPriceNotFound             = NewDomainError("recommendation", "ParsePrice", ErrNotFound, "no price in input")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsVersionConflict reports whether a save lost an optimistic concurrency race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrVersionConflict)
}
