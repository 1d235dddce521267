// Package shared contains common domain errors and events that are used
// across the leveling packages.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// ErrValidation marks missing, malformed or out-of-range arguments. No write
	// was attempted for them.
	ErrValidation = errors.New("validation error")

	// ErrNotReady marks an operation invoked before the store finished initializing.
	ErrNotReady = errors.New("not ready")

	// ErrInsufficientBalance marks a subtraction that would drive a counter
	// below its floor. The record was left unchanged.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound marks a record that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStore marks an underlying read or write failure (I/O, decode, connection).
	ErrStore = errors.New("store failure")

	// ErrClosed marks use of a component after Close.
	ErrClosed = errors.New("closed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "leveling", "guild"
	Op      string // Operation that failed, e.g., "AddXP", "Leaderboard"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotReady checks if the error was caused by an uninitialized store.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsInsufficientBalance checks if a subtraction was refused.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStore checks if the error came from the persistence layer.
func IsStore(err error) bool {
	return errors.Is(err, ErrStore)
}
