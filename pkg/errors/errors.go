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
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Manifest errors
	ErrManifestLoad    ErrorCode = "MANIFEST_LOAD"
	ErrManifestInvalid ErrorCode = "MANIFEST_INVALID"

	// Configuration state errors
	ErrStateLoad    ErrorCode = "STATE_LOAD"
	ErrStateCorrupt ErrorCode = "STATE_CORRUPT"
	ErrStateWrite   ErrorCode = "STATE_WRITE"

	// Dependency graph errors
	ErrGraphOpen  ErrorCode = "GRAPH_OPEN"
	ErrGraphRead  ErrorCode = "GRAPH_READ"
	ErrGraphWrite ErrorCode = "GRAPH_WRITE"

	// Library and archive errors
	ErrLibraryLoad  ErrorCode = "LIBRARY_LOAD"
	ErrArchiveRead  ErrorCode = "ARCHIVE_READ"
	ErrArchiveWrite ErrorCode = "ARCHIVE_WRITE"

	// Storage errors
	ErrStorageClose ErrorCode = "STORAGE_CLOSE"
	ErrTrash        ErrorCode = "TRASH"
	ErrBackup       ErrorCode = "BACKUP"

	// Compilation errors
	ErrCompile  ErrorCode = "COMPILE"
	ErrCanceled ErrorCode = "CANCELED"

	// FileSystem errors
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrDirCreate  ErrorCode = "DIR_CREATE"
)

// IncrError represents a structured error with code and details
type IncrError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *IncrError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *IncrError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *IncrError) Is(target error) bool {
	var targetErr *IncrError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new IncrError with the given code and message
func New(code ErrorCode, message string) *IncrError {
	return &IncrError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new IncrError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *IncrError {
	return &IncrError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an IncrError.
// It returns a nil error interface (not a typed nil) when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &IncrError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &IncrError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *IncrError) WithDetail(key string, value interface{}) *IncrError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *IncrError) WithDetails(details map[string]interface{}) *IncrError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var incrErr *IncrError
	if errors.As(err, &incrErr) {
		return incrErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an IncrError
func GetErrorCode(err error) ErrorCode {
	var incrErr *IncrError
	if errors.As(err, &incrErr) {
		return incrErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an IncrError
func GetErrorDetails(err error) map[string]interface{} {
	var incrErr *IncrError
	if errors.As(err, &incrErr) {
		return incrErr.Details
	}
	return nil
}
