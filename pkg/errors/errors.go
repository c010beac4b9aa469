package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies application errors
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeBadRequest indicates invalid input
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"
	// ErrorTypeConflict indicates the request clashes with current state
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeUnavailable indicates a dependency could not be reached
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{Type: errorType, Message: message}
}

// Wrap wraps err with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{Type: errorType, Message: message, Err: err}
}

// NotFound creates a not found error
func NotFound(format string, args ...interface{}) error {
	return New(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// BadRequest creates a bad request error
func BadRequest(format string, args ...interface{}) error {
	return New(ErrorTypeBadRequest, fmt.Sprintf(format, args...))
}

// Conflict creates a conflict error
func Conflict(format string, args ...interface{}) error {
	return New(ErrorTypeConflict, fmt.Sprintf(format, args...))
}

// Unavailable creates an unavailable error
func Unavailable(format string, args ...interface{}) error {
	return New(ErrorTypeUnavailable, fmt.Sprintf(format, args...))
}

// Internal creates an internal error
func Internal(format string, args ...interface{}) error {
	return New(ErrorTypeInternal, fmt.Sprintf(format, args...))
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return isType(err, ErrorTypeBadRequest)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsUnavailable checks if an error is an unavailable error
func IsUnavailable(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}

// IsDuplicateError reports whether err is a unique constraint violation from
// PostgreSQL or SQLite.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "duplicated key") ||
		strings.Contains(errStr, "SQLSTATE 23505")
}
