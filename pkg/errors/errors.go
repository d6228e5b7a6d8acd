// Package errors provides structured error types for projmigrate.
//
// Every failure the tool can recover from is scoped to one project or one
// edge of the dependency graph. Coded errors let the pipeline decide whether
// a failure excludes a single project or ends the run:
//
//   - INVALID_*: invocation or input validation failures
//   - NOT_*: a project that cannot take part in the migration
//   - *_FAILED: I/O while loading, saving or pruning a project
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "no target directory given")
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Exit with usage error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidProject, origErr, "load %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Invocation and input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidProject Code = "INVALID_PROJECT"

	// Project-local conditions
	ErrCodeNotConvertible Code = "NOT_CONVERTIBLE"
	ErrCodeNotFound       Code = "NOT_FOUND"

	// I/O errors
	ErrCodeSaveFailed  Code = "SAVE_FAILED"
	ErrCodePruneFailed Code = "PRUNE_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsProjectLocal reports whether err only disqualifies a single project
// rather than the whole run.
func IsProjectLocal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidProject, ErrCodeNotConvertible, ErrCodeSaveFailed, ErrCodePruneFailed:
		return true
	}
	return false
}
