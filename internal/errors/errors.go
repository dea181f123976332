package errors

import "fmt"

// PTTSError is the structured error type returned by the core. It carries
// enough context for both machine handling (Kind) and human presentation
// (Message, Details).
type PTTSError struct {
	// Kind classifies the error (see codes.go).
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs (ids, paths).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PTTSError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PTTSError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by kind, so errors.Is
// works against a sentinel PTTSError built with the same Kind.
func (e *PTTSError) Is(target error) bool {
	if t, ok := target.(*PTTSError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns e for chaining.
func (e *PTTSError) WithDetail(key, value string) *PTTSError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a PTTSError of the given kind. Retryable is derived from kind.
func New(kind Kind, message string, cause error) *PTTSError {
	return &PTTSError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: IsRetryableKind(kind),
	}
}

// Wrap creates a PTTSError from an existing error, reusing its message.
func Wrap(kind Kind, err error) *PTTSError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// Validation creates a KindValidation error.
func Validation(message string) *PTTSError {
	return New(KindValidation, message, nil)
}

// NotFound creates a KindNotFound error for the given entity/id.
func NotFound(entity, id string) *PTTSError {
	return New(KindNotFound, fmt.Sprintf("%s not found: %s", entity, id), nil).
		WithDetail("entity", entity).WithDetail("id", id)
}

// UniqueViolation creates a KindUniqueViolation error.
func UniqueViolation(entity, id string) *PTTSError {
	return New(KindUniqueViolation, fmt.Sprintf("%s already exists: %s", entity, id), nil).
		WithDetail("entity", entity).WithDetail("id", id)
}

// ChainBroken creates a KindChainBroken error.
func ChainBroken(message string) *PTTSError {
	return New(KindChainBroken, message, nil)
}

// Internal creates a KindInternal error.
func Internal(message string, cause error) *PTTSError {
	return New(KindInternal, message, cause)
}

// IsRetryable reports whether err is a PTTSError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PTTSError); ok {
		return pe.Retryable
	}
	return false
}

// GetKind extracts the Kind from err, or "" if it is not a PTTSError.
func GetKind(err error) Kind {
	if pe, ok := err.(*PTTSError); ok {
		return pe.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
