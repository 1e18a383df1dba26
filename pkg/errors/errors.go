package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Structural errors: a project/pipeline/collection/dataset directory
	// does not match the required layout
	ErrInvalidStructure ErrorCode = "INVALID_STRUCTURE"

	// Plugin errors raised while loading a pipeline implementation
	ErrPluginNotFound        ErrorCode = "PLUGIN_NOT_FOUND"
	ErrPluginAmbiguous       ErrorCode = "PLUGIN_AMBIGUOUS"
	ErrImplementationMissing ErrorCode = "IMPLEMENTATION_MISSING"

	// Dataset packaging errors
	ErrInvalidMapping ErrorCode = "INVALID_MAPPING"
	ErrHeaderConflict ErrorCode = "HEADER_CONFLICT"
	ErrManifest       ErrorCode = "MANIFEST"
	ErrComposition    ErrorCode = "COMPOSITION"

	// Pipeline dependency installation errors
	ErrInstall ErrorCode = "INSTALL"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileCreate   ErrorCode = "FILE_CREATE"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// TidelineError represents a structured error with code and details
type TidelineError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *TidelineError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *TidelineError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *TidelineError) Is(target error) bool {
	var targetErr *TidelineError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new TidelineError with the given code and message
func New(code ErrorCode, message string) *TidelineError {
	return &TidelineError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new TidelineError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *TidelineError {
	return &TidelineError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a TidelineError
func Wrap(err error, code ErrorCode, message string) *TidelineError {
	if err == nil {
		return nil
	}
	return &TidelineError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *TidelineError {
	if err == nil {
		return nil
	}
	return &TidelineError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *TidelineError) WithDetail(key string, value interface{}) *TidelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var terr *TidelineError
	if errors.As(err, &terr) {
		return terr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a TidelineError
func GetErrorCode(err error) ErrorCode {
	var terr *TidelineError
	if errors.As(err, &terr) {
		return terr.Code
	}
	return ErrUnknown
}
