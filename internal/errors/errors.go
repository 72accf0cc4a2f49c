// Package errors provides structured error types for MooseDB.
// All errors include a category, code, and message so that the API boundary can
// map them onto status codes without inspecting message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategoryInvalidInput  ErrorCategory = "INVALID_INPUT"
	ErrCategoryAlreadyExists ErrorCategory = "ALREADY_EXISTS"
	ErrCategoryNotFound      ErrorCategory = "NOT_FOUND"
	ErrCategoryStorage       ErrorCategory = "STORAGE"
	ErrCategoryInconsistent  ErrorCategory = "INCONSISTENT_CATALOG"
	ErrCategoryUnauthorized  ErrorCategory = "UNAUTHORIZED"
	ErrCategoryInternal      ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Invalid input codes
	CodeInvalidName    = "INVALID_NAME"
	CodeInvalidSchema  = "INVALID_SCHEMA"
	CodeInvalidPayload = "INVALID_PAYLOAD"

	// Already exists codes
	CodeCollectionExists = "COLLECTION_EXISTS"
	CodeUserExists       = "USER_EXISTS"

	// Not found codes
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeSettingNotFound    = "SETTING_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"

	// Storage codes
	CodeStatementFailed     = "STATEMENT_FAILED"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeBusy                = "BUSY"
	CodePoolExhausted       = "POOL_EXHAUSTED"

	// Inconsistent catalog codes
	CodeDanglingCatalog = "DANGLING_CATALOG"
	CodePartialCommit   = "PARTIAL_COMMIT"
	CodeColumnMismatch  = "COLUMN_MISMATCH"

	// Unauthorized codes
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MooseError is the structured error type used throughout the system.
type MooseError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *MooseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MooseError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MooseError) Is(target error) bool {
	var t *MooseError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MooseError.
func New(category ErrorCategory, code, message string) *MooseError {
	return &MooseError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new MooseError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MooseError {
	return &MooseError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *MooseError) WithDetails(details map[string]interface{}) *MooseError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a MooseError.
func GetCategory(err error) ErrorCategory {
	var me *MooseError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a MooseError.
func GetCode(err error) string {
	var me *MooseError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// Message returns the human readable message of the outermost MooseError in the
// chain, followed by its cause. Storage errors keep the engine's own text.
func Message(err error) string {
	var me *MooseError
	if errors.As(err, &me) {
		if me.Cause != nil {
			return fmt.Sprintf("%s: %v", me.Message, me.Cause)
		}
		return me.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func IsInvalidInput(err error) bool  { return GetCategory(err) == ErrCategoryInvalidInput }
func IsAlreadyExists(err error) bool { return GetCategory(err) == ErrCategoryAlreadyExists }
func IsNotFound(err error) bool      { return GetCategory(err) == ErrCategoryNotFound }
func IsStorage(err error) bool       { return GetCategory(err) == ErrCategoryStorage }
func IsInconsistent(err error) bool  { return GetCategory(err) == ErrCategoryInconsistent }
func IsUnauthorized(err error) bool  { return GetCategory(err) == ErrCategoryUnauthorized }

// Convenience constructors for common errors.

func NewInvalidInput(code, message string) *MooseError {
	return New(ErrCategoryInvalidInput, code, message)
}

func NewAlreadyExists(code, message string) *MooseError {
	return New(ErrCategoryAlreadyExists, code, message)
}

func NewNotFound(code, message string) *MooseError {
	return New(ErrCategoryNotFound, code, message)
}

func NewStorageError(code, message string, cause error) *MooseError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInconsistentCatalog(code, message string, cause error) *MooseError {
	return Wrap(ErrCategoryInconsistent, code, message, cause)
}

func NewUnauthorized(code, message string) *MooseError {
	return New(ErrCategoryUnauthorized, code, message)
}

func NewInternalError(message string, cause error) *MooseError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
