package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorCode classifies an error for the HTTP boundary and for callers
// that branch on failure kind.
type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "VALIDATION"
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeConflict    ErrorCode = "CONFLICT"
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	ErrorCodeInternal    ErrorCode = "INTERNAL"
)

// AppError carries a stable code plus a human-readable message.
// Internal details wrap via Err and are logged, never returned to clients.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewRateLimitedError(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeRateLimited, Message: fmt.Sprintf(format, args...)}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: ErrorCodeInternal, Message: message, Err: err}
}

// CodeOf maps any error to its ErrorCode. Unknown errors are INTERNAL;
// the record-not-found sentinel maps to NOT_FOUND so store helpers can
// stay terse.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return ErrorCodeNotFound
	}
	return ErrorCodeInternal
}

// ClientMessage returns the message safe to expose to API clients.
// INTERNAL errors collapse to a generic message.
func ClientMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != ErrorCodeInternal {
		return appErr.Message
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return "record not found"
	}
	return "internal error"
}
