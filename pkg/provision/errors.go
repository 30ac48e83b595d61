package provision

import (
	"errors"
	"fmt"
)

// ErrorCategory categorizes errors for handling and reporting.
type ErrorCategory string

const (
	// ErrCategoryAuth indicates no usable credential or a rejected login.
	ErrCategoryAuth ErrorCategory = "auth"
	// ErrCategoryNotFound indicates a referenced remote resource does not exist.
	ErrCategoryNotFound ErrorCategory = "not_found"
	// ErrCategoryConflict indicates a name collision where uniqueness is required.
	ErrCategoryConflict ErrorCategory = "conflict"
	// ErrCategoryAlreadyExists indicates a duplicate create that the pipeline
	// recovers from locally (lookup fallback or treated as success). It is
	// produced at the client boundary and must never surface to callers.
	ErrCategoryAlreadyExists ErrorCategory = "already_exists"
	// ErrCategoryProvision indicates a generic remote rejection.
	ErrCategoryProvision ErrorCategory = "provision"
	// ErrCategoryValidation indicates invalid input or configuration.
	ErrCategoryValidation ErrorCategory = "validation"
	// ErrCategoryInternal indicates an internal error.
	ErrCategoryInternal ErrorCategory = "internal"
)

// Error is a structured provisioning error with a category discriminator.
// Remote status codes and OData/ARM error codes are mapped to categories at
// the client boundary; callers branch on the category, never on message text.
type Error struct {
	// Category classifies the error type.
	Category ErrorCategory

	// Message is a human-readable error message.
	Message string

	// Operation is the pipeline operation that failed.
	Operation string

	// ResourceType is the type of remote resource involved.
	ResourceType string

	// ResourceID is the identifier of the resource involved.
	ResourceID string

	// Cause is the underlying error.
	Cause error

	// Details contains additional error context.
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Category, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Operation, e.Category, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error's category.
func (e *Error) Is(target error) bool {
	var perr *Error
	if errors.As(target, &perr) {
		return e.Category == perr.Category
	}
	return false
}

// NewError creates a new Error.
func NewError(category ErrorCategory, message string) *Error {
	return &Error{
		Category: category,
		Message:  message,
		Details:  make(map[string]interface{}),
	}
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithResource sets the resource type and ID.
func (e *Error) WithResource(resourceType, resourceID string) *Error {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// Convenience constructors for the taxonomy

// ErrAuth creates an authentication error.
func ErrAuth(message string) *Error {
	return NewError(ErrCategoryAuth, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resourceType, resourceID string) *Error {
	return NewError(ErrCategoryNotFound, fmt.Sprintf("%s not found: %s", resourceType, resourceID)).
		WithResource(resourceType, resourceID)
}

// ErrConflict creates a conflict error.
func ErrConflict(resourceType, resourceID string) *Error {
	return NewError(ErrCategoryConflict, fmt.Sprintf("%s name already in use: %s", resourceType, resourceID)).
		WithResource(resourceType, resourceID)
}

// ErrAlreadyExists creates an already-exists error. Pipeline stages recover
// from this category locally; it is never returned to callers.
func ErrAlreadyExists(resourceType, resourceID string) *Error {
	return NewError(ErrCategoryAlreadyExists, fmt.Sprintf("%s already exists: %s", resourceType, resourceID)).
		WithResource(resourceType, resourceID)
}

// ErrProvision creates a generic remote-rejection error.
func ErrProvision(message string) *Error {
	return NewError(ErrCategoryProvision, message)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return NewError(ErrCategoryValidation, message)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *Error {
	return NewError(ErrCategoryInternal, message)
}

// IsCategory checks if an error is of a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Category == category
	}
	return false
}

// IsRecoverable reports whether a create failure is the duplicate-create
// condition that each stage resolves by lookup or treats as success.
func IsRecoverable(err error) bool {
	return IsCategory(err, ErrCategoryAlreadyExists)
}
