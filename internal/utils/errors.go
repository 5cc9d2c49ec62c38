// Package utils provides logging, error handling and rate limiting
// shared by the tab management packages.
package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents predefined error codes for categorization
type ErrorCode string

const (
	// Tab lifecycle errors
	ErrCodeTabNotFound   ErrorCode = "TAB_NOT_FOUND"
	ErrCodeTabClosed     ErrorCode = "TAB_CLOSED"
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
	ErrCodeBrowserFailed ErrorCode = "BROWSER_FAILED"

	// Page interaction errors
	ErrCodeNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeSelectorNotFound  ErrorCode = "SELECTOR_NOT_FOUND"
	ErrCodeScriptFailed      ErrorCode = "SCRIPT_FAILED"

	// Scheduling errors
	ErrCodeInvalidPeriod ErrorCode = "INVALID_PERIOD"
	ErrCodeInvalidWait   ErrorCode = "INVALID_WAIT"

	// Configuration and storage errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeStoreFailed   ErrorCode = "STORE_FAILED"

	// Generic errors
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
)

// StructuredError carries an error code and optional context alongside the
// message so callers can match on category instead of string content.
type StructuredError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across wrap chains
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext adds contextual information to the error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	err *StructuredError
}

// NewError creates a new error builder
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &StructuredError{
			Code:    code,
			Message: message,
		},
	}
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.err.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if eb.err.Context == nil {
		eb.err.Context = make(map[string]interface{})
	}
	eb.err.Context[key] = value
	return eb
}

// WithRetryable marks the error as retryable
func (eb *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	eb.err.Retryable = retryable
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.err
}

// WrapError wraps an existing error in a structured error
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(err).Build()
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return errors.Is(err, &StructuredError{Code: code})
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}

	// Check for common retryable error patterns
	errorStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"connection refused",
		"temporary failure",
		"context deadline exceeded",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}

	return false
}
