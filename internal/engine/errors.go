// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is against a scrape failure
var (
	ErrCatalogUnreachable = &Error{Code: ErrCodeUnreachable, Message: "catalog page unreachable"}
	ErrSessionUnavailable = &Error{Code: ErrCodeSession, Message: "browser session unavailable"}
	ErrParse              = &Error{Code: ErrCodeParse, Message: "failed to parse page"}
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// ErrCodeUnreachable: the catalog page could not be loaded after retries
	ErrCodeUnreachable ErrorCode = "CATALOG_UNREACHABLE"
	// ErrCodeSession: no remote browser session could be established
	ErrCodeSession ErrorCode = "SESSION_UNAVAILABLE"
	// ErrCodeParse: the captured page could not be read at all
	ErrCodeParse ErrorCode = "PARSE_ERROR"
)

// Error wraps a scrape failure with a code and optional details
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches any *Error with the same code, then the underlying chain
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewError creates a new Error
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *Error) WithRetry() *Error {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
