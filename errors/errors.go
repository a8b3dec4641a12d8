// Package errors provides error types and utilities for the postqueue library.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrTokenRefreshFailed     = errors.New("failed to refresh access token")
	ErrAuthorizationFailed    = errors.New("authorization code exchange failed")
	ErrNoAccessToken          = errors.New("access token not available")
	ErrValidationFailed       = errors.New("content validation failed")
	ErrItemNotFound           = errors.New("queue item not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConnectorNotFound      = errors.New("connector not found")
	ErrEmptyTarget            = errors.New("target name cannot be empty")
	ErrNilConnector           = errors.New("connector cannot be nil")
	ErrCancelled              = errors.New("cancelled by worker")
	ErrNotConnected           = errors.New("not connected")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrUnsupported            = errors.New("operation not supported by connector")
	ErrShutdownTimeout        = errors.New("shutdown timeout exceeded")
)

// ValidationError lists every rule a piece of content violated
type ValidationError struct {
	Platform string   // platform whose rules were applied
	Errors   []string // human-readable violations, in rule order
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// RemoteError represents a failed call across a platform's remote boundary
type RemoteError struct {
	Platform string // platform tag
	Op       string // remote operation being performed
	Err      error  // underlying error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call may succeed. Remote failures are
// treated as transient unless the underlying error says otherwise.
func (e *RemoteError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return true
}

// StateError represents a rejected queue item transition
type StateError struct {
	ID   string // item id
	From string // current status
	To   string // requested status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("item %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidStateTransition
}

// ConnectionError represents connection-related errors
type ConnectionError struct {
	URI string // connection URI (may be redacted)
	Err error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Temporary() bool {
	return true
}

// Helper functions for creating errors

// NewValidationError creates a new validation error
func NewValidationError(platform string, violations []string) error {
	return &ValidationError{Platform: platform, Errors: append([]string(nil), violations...)}
}

// NewRemoteError creates a new remote error
func NewRemoteError(platform, op string, err error) error {
	return &RemoteError{Platform: platform, Op: op, Err: err}
}

// NewStateError creates a new state transition error
func NewStateError(id, from, to string) error {
	return &StateError{ID: id, From: from, To: to}
}

// NewConnectionError creates a new connection error
func NewConnectionError(uri string, err error) error {
	return &ConnectionError{URI: uri, Err: err}
}

// ItemNotFound wraps ErrItemNotFound with the missing id
func ItemNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// IsRetryable reports whether a failed publish may succeed on a later attempt.
// Authentication, validation and queue state errors are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrConnectorNotFound),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrTokenRefreshFailed),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
