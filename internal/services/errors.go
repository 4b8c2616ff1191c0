package services

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to handlers for HTTP status mapping
var (
	// Quiz errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizEnded        = errors.New("quiz has ended")
	ErrQuizNotAvailable = errors.New("quiz is not available")
	ErrQuizHasAttempts  = errors.New("quiz has existing attempts")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAccessDenied     = errors.New("access denied to attempt")
	ErrAttemptAlreadyExists    = errors.New("an attempt already exists for this quiz")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotCompleted     = errors.New("attempt is not completed")

	// Answer / grading errors
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrNotManuallyGraded = errors.New("answer type is auto-graded")

	// Sync errors
	ErrNotSyncEligible  = errors.New("attempt is not eligible for marks sync")
	ErrAnalyzerRejected = errors.New("analyzer rejected the marks update")

	// Generic errors
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden")
	ErrUserNotFound     = errors.New("user not found")
	ErrConflict         = errors.New("resource conflict")
)

// ValidationError wraps field-level validation failures with the
// ErrValidationFailed sentinel so handlers can map it to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a field validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PermissionError carries the denied action for logging
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// NewPermissionError creates a permission error wrapping ErrForbidden
func NewPermissionError(userID, resource, action, reason string) error {
	return &PermissionError{UserID: userID, Resource: resource, Action: action, Reason: reason}
}
