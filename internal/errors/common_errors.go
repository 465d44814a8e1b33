package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeElementNotFound ErrorType = "ELEMENT_NOT_FOUND"
	ErrTypeStaleElement    ErrorType = "STALE_ELEMENT"
	ErrTypeDownloadTimeout ErrorType = "DOWNLOAD_TIMEOUT"
	ErrTypeAuth            ErrorType = "AUTH"
	ErrTypeVerification    ErrorType = "VERIFICATION"
	ErrTypeNetwork         ErrorType = "NETWORK"
	ErrTypeParsing         ErrorType = "PARSING"
	ErrTypeStorage         ErrorType = "STORAGE"
	ErrTypeValidation      ErrorType = "VALIDATION"
	ErrTypeConfig          ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the type of the outermost AppError in the chain, or an
// empty string when err carries none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether any AppError in the chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Helper functions for common error types

// NewElementNotFoundError is returned when every lookup strategy for a
// required page element has been exhausted.
func NewElementNotFoundError(element string, cause error) *AppError {
	return NewAppError(ErrTypeElementNotFound, fmt.Sprintf("element %q not found", element), cause).
		WithContext("element", element)
}

// NewStaleElementError marks an element handle that detached from the page.
func NewStaleElementError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStaleElement, message, cause)
}

// NewDownloadTimeoutError creates a download timeout error
func NewDownloadTimeoutError(dir string, cause error) *AppError {
	return NewAppError(ErrTypeDownloadTimeout, "no completed download appeared", cause).
		WithContext("dir", dir)
}

// NewAuthError creates an authentication error
func NewAuthError(message string, cause error) *AppError {
	return NewAppError(ErrTypeAuth, message, cause)
}

// NewVerificationError creates a verification error
func NewVerificationError(message string) *AppError {
	return NewAppError(ErrTypeVerification, message, nil)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
