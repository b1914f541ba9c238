// Package errors provides the shared error model for the blocksmith toolchain.
//
// Library-level components (scanner, merge engine, cache, backend client)
// return *AppError values; the CLI and the dev server each format them for
// their own surface via the handlers in handlers.go. The strict/lenient scan
// toggle is a policy decision made by callers, not encoded here.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies a failure class with a stable machine-readable name.
type ErrorCode string

const (
	// Resource configuration and schema
	ErrCodeConfigResolution ErrorCode = "CONFIG_RESOLUTION_FAILED"
	ErrCodeSchemaInvalid    ErrorCode = "SCHEMA_INVALID"
	ErrCodeLegacyMetadata   ErrorCode = "LEGACY_METADATA"
	ErrCodeMissingPackage   ErrorCode = "MISSING_PACKAGE_METADATA"

	// Validation of inbound requests
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Resources
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Storage
	ErrCodePreviewIO      ErrorCode = "PREVIEW_IO_FAILED"
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
	ErrCodeCacheCorrupted ErrorCode = "CACHE_CORRUPTED"

	// Backend
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodePublishFail  ErrorCode = "PUBLISH_FAILED"
	ErrCodePlanLimit    ErrorCode = "PLAN_LIMIT_EXCEEDED"
	ErrCodeNetwork      ErrorCode = "NETWORK_FAILURE"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	// Generic
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategorySchema     ErrorCategory = "schema"
	CategoryValidation ErrorCategory = "validation"
	CategoryStorage    ErrorCategory = "storage"
	CategoryBackend    ErrorCategory = "backend"
	CategorySystem     ErrorCategory = "system"
)

// AppError is the standardized application error carried across layers.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Category  ErrorCategory          `json:"category"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
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

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	category, severity := categorize(code)
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Category:  category,
		Timestamp: time.Now(),
		Retryable: isRetryable(code),
	}
}

// Wrap wraps an existing error with application error context
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := NewAppError(code, message)
	appErr.Cause = err
	return appErr
}

func categorize(code ErrorCode) (ErrorCategory, ErrorSeverity) {
	switch code {
	case ErrCodeConfigResolution, ErrCodeLegacyMetadata, ErrCodeMissingPackage:
		return CategoryConfig, SeverityError
	case ErrCodeSchemaInvalid:
		return CategorySchema, SeverityError
	case ErrCodeValidation, ErrCodeInvalidInput:
		return CategoryValidation, SeverityWarning
	case ErrCodeNotFound:
		return CategorySystem, SeverityInfo
	case ErrCodeAlreadyExists:
		return CategorySystem, SeverityWarning
	case ErrCodePreviewIO, ErrCodeStorageFailure:
		return CategoryStorage, SeverityError
	case ErrCodeCacheCorrupted:
		return CategoryStorage, SeverityWarning
	case ErrCodeUnauthorized:
		return CategoryBackend, SeverityWarning
	case ErrCodePublishFail, ErrCodeNetwork, ErrCodeTimeout, ErrCodePlanLimit:
		return CategoryBackend, SeverityError
	case ErrCodeInternal:
		return CategorySystem, SeverityCritical
	default:
		return CategorySystem, SeverityError
	}
}

func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeNetwork, ErrCodeTimeout, ErrCodeStorageFailure:
		return true
	default:
		return false
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts an AppError from an error, or converts it to one
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, "Internal error occurred")
}

// Common error constructors

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AlreadyExistsError(resource string) *AppError {
	return NewAppError(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message)
}

func ConfigError(resource string, err error) *AppError {
	return Wrap(err, ErrCodeConfigResolution,
		fmt.Sprintf("failed to resolve configuration for %s", resource)).
		WithContext("resource", resource)
}

func SchemaError(resource string, count int) *AppError {
	return NewAppError(ErrCodeSchemaInvalid,
		fmt.Sprintf("schema for %s has %d invalid field definition(s)", resource, count)).
		WithContext("resource", resource)
}

func PreviewIOError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePreviewIO, fmt.Sprintf("preview content %s failed", operation))
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message)
}
