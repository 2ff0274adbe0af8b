// Package errors provides standardized error types for the benchmark toolkit.
package errors

import (
	"errors"
	"fmt"
)

// Error codes grouped by the failure taxonomy: configuration and
// connection problems are fatal before any mutation, query failures
// abort a benchmark run, scale failures are surfaced per phase.
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeConnectionFailed   = "CONNECTION_FAILED"
	CodeQueryFailed        = "QUERY_FAILED"
	CodeScriptInvalid      = "SCRIPT_INVALID"
	CodeScaleFailed        = "SCALE_FAILED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
	CodeCanceled           = "CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// BenchError represents a toolkit error with code, message, and optional details.
type BenchError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *BenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code.
func (e *BenchError) Is(target error) bool {
	t, ok := target.(*BenchError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *BenchError) WithDetail(key string, value interface{}) *BenchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrTokenMissing   = &BenchError{Code: CodeConfigInvalid, Message: "MotherDuck token not found; set MOTHERDUCK_TOKEN in the environment or .env file"}
	ErrEmptyScript    = &BenchError{Code: CodeScriptInvalid, Message: "no benchmark statements found in script"}
	ErrConnectionFail = &BenchError{Code: CodeConnectionFailed, Message: "failed to connect to MotherDuck"}
	ErrScaleCanceled  = &BenchError{Code: CodeCanceled, Message: "scaling cancelled by operator"}
	ErrNoStorageInfo  = &BenchError{Code: CodeStorageUnavailable, Message: "storage information is not available"}
)

// New creates a new BenchError with the given code and message.
func New(code, message string) *BenchError {
	return &BenchError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new BenchError with a formatted message.
func Newf(code, format string, args ...interface{}) *BenchError {
	return &BenchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a BenchError.
func Wrap(err error, code, message string) *BenchError {
	if err == nil {
		return nil
	}
	return &BenchError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *BenchError {
	if err == nil {
		return nil
	}
	return &BenchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsConfigInvalid checks if an error is a configuration error.
func IsConfigInvalid(err error) bool {
	var benchErr *BenchError
	if errors.As(err, &benchErr) {
		return benchErr.Code == CodeConfigInvalid
	}
	return false
}

// IsCanceled checks if an error represents an operator cancellation.
func IsCanceled(err error) bool {
	var benchErr *BenchError
	if errors.As(err, &benchErr) {
		return benchErr.Code == CodeCanceled
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var benchErr *BenchError
	if errors.As(err, &benchErr) {
		return benchErr.Code
	}
	return CodeInternal
}
