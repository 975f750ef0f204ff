// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Category validation errors.
	ErrDuplicateName       = errors.New("name already exists")
	ErrInvalidColor        = errors.New("color must be a valid hex color (e.g., #FF0000)")
	ErrSelfParent          = errors.New("a category cannot be its own parent")
	ErrCircularReference   = errors.New("this would create a circular reference")
	ErrCrossTenant         = errors.New("referenced entity belongs to another tenant")
	ErrSystemCategory      = errors.New("system categories cannot be deleted")
	ErrRequired            = errors.New("field is required")
	ErrUnknownCondition    = errors.New("unknown condition type")
	ErrUnknownField        = errors.New("unknown field name")
	ErrInvalidPattern      = errors.New("invalid regular expression pattern")
	ErrNonNumericAmount    = errors.New("field value must be a valid number for amount-based conditions")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrMissingTenant       = errors.New("tenant is required")
	ErrNoRecords           = errors.New("no records to categorize")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// ValidationError is a field-scoped validation failure raised by a mutating
// operation. Err is always one of the sentinel errors above.
type ValidationError struct {
	Err   error
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %v (got %q)", e.Field, e.Err, e.Value)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a field-scoped validation error.
func NewValidationError(field string, err error, value string) error {
	return &ValidationError{
		Field: field,
		Err:   err,
		Value: value,
	}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
