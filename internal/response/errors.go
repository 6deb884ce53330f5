package response

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the service layer.
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodePartialCascade     = "PARTIAL_CASCADE_FAILURE"
	ErrCodeUnsupportedContext = "UNSUPPORTED_CONTEXT"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// AppError is the structured error returned by service operations.
// Code drives caller behavior, Message is user-facing, Details carries
// diagnostic context for logs.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new AppError
func NewAppError(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND AppError.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}
