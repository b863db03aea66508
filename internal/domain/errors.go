package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code and message, so
// provider errors built with a cause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeMigration        = "MIGRATION_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidCursor        = NewDomainError(ErrCodeValidation, "invalid pagination cursor")
)

// Not found errors
var (
	ErrIndexNotFound   = NewDomainError(ErrCodeNotFound, "no document index exists")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Provider errors. Build with NewEmbeddingError / NewGenerationError so the
// provider's failure is carried as the cause; errors.Is against the
// sentinels still matches.
var (
	ErrEmbeddingFailed  = NewDomainError(ErrCodeProvider, "embedding provider failed")
	ErrGenerationFailed = NewDomainError(ErrCodeProvider, "generation provider failed")
)

// Migration errors
var (
	ErrMigrationIntegrity = NewDomainError(ErrCodeMigration, "migration cannot guarantee zero data loss")
)

// Operation errors
var (
	ErrArchiveNotConfigured = NewDomainError(ErrCodeInvalidOperation, "document archive not configured")
)

// NewEmbeddingError wraps an embedding provider failure.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeProvider, "embedding provider failed", err)
}

// NewGenerationError wraps a generation provider failure.
func NewGenerationError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeProvider, "generation provider failed", err)
}

// NewMigrationIntegrityError wraps a condition under which migration would
// lose data and must abort.
func NewMigrationIntegrityError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeMigration, "migration cannot guarantee zero data loss", err)
}
