package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "element not found", errType: ErrTypeElementNotFound, expected: "ELEMENT_NOT_FOUND"},
		{name: "stale element", errType: ErrTypeStaleElement, expected: "STALE_ELEMENT"},
		{name: "download timeout", errType: ErrTypeDownloadTimeout, expected: "DOWNLOAD_TIMEOUT"},
		{name: "auth", errType: ErrTypeAuth, expected: "AUTH"},
		{name: "verification", errType: ErrTypeVerification, expected: "VERIFICATION"},
		{name: "network", errType: ErrTypeNetwork, expected: "NETWORK"},
		{name: "parsing", errType: ErrTypeParsing, expected: "PARSING"},
		{name: "storage", errType: ErrTypeStorage, expected: "STORAGE"},
		{name: "validation", errType: ErrTypeValidation, expected: "VALIDATION"},
		{name: "config", errType: ErrTypeConfig, expected: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    &AppError{Type: ErrTypeAuth, Message: "authentication did not complete"},
			wantMessage: "[AUTH] authentication did not complete",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "rename failed",
				Cause:   fmt.Errorf("permission denied"),
			},
			wantMessage: "[STORAGE] rename failed: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	appErr := NewNetworkError("request failed", cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))
}

func TestAppError_WithContext(t *testing.T) {
	appErr := &AppError{Type: ErrTypeElementNotFound, Message: "missing"}
	appErr.WithContext("step", "export").WithContext("cabinet", "MAU")

	require.NotNil(t, appErr.Context)
	assert.Equal(t, "export", appErr.Context["step"])
	assert.Equal(t, "MAU", appErr.Context["cabinet"])
}

func TestNewElementNotFoundError(t *testing.T) {
	err := NewElementNotFoundError("export button", nil)

	assert.Equal(t, ErrTypeElementNotFound, err.Type)
	assert.Contains(t, err.Error(), `"export button"`)
	assert.Equal(t, "export button", err.Context["element"])
}

func TestIsType(t *testing.T) {
	stale := NewStaleElementError("node detached", nil)
	wrapped := fmt.Errorf("click: %w", stale)
	nested := NewAuthError("second code step failed", NewElementNotFoundError("code input", nil))

	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{name: "direct match", err: stale, errType: ErrTypeStaleElement, want: true},
		{name: "wrapped with fmt", err: wrapped, errType: ErrTypeStaleElement, want: true},
		{name: "outer type of nested", err: nested, errType: ErrTypeAuth, want: true},
		{name: "inner type of nested", err: nested, errType: ErrTypeElementNotFound, want: true},
		{name: "no match", err: stale, errType: ErrTypeAuth, want: false},
		{name: "plain error", err: errors.New("boom"), errType: ErrTypeAuth, want: false},
		{name: "nil", err: nil, errType: ErrTypeAuth, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrTypeDownloadTimeout, TypeOf(fmt.Errorf("cabinet MAB: %w", NewDownloadTimeoutError("/tmp", nil))))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}
