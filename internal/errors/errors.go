package errors

import (
	"fmt"
)

// ScoutError is the structured error type for Scout.
// It carries the context needed for logging and for callers deciding
// whether an operation can continue or must abort.
type ScoutError struct {
	// Code is the unique error code (e.g., "ERR_301_PROVIDER_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Lifecycle, Storage, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *ScoutError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScoutError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *ScoutError) Is(target error) bool {
	if t, ok := target.(*ScoutError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScoutError) WithDetail(key, value string) *ScoutError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ScoutError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScoutError from an existing error.
// The error's message becomes the ScoutError message.
func Wrap(code string, err error) *ScoutError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// SnapshotNotReady signals a query arriving before the first build completed.
func SnapshotNotReady(message string) *ScoutError {
	return New(ErrCodeSnapshotNotReady, message, nil)
}

// ProviderUnavailable signals an embedding call that failed after retries.
func ProviderUnavailable(message string, cause error) *ScoutError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// IndexCorrupt signals malformed data returned from the cache layer.
// Callers treat it as a cache miss and rebuild.
func IndexCorrupt(message string, cause error) *ScoutError {
	return New(ErrCodeIndexCorrupt, message, cause)
}

// TimeoutExceeded marks a ranking signal that did not finish in time.
func TimeoutExceeded(message string) *ScoutError {
	return New(ErrCodeTimeoutExceeded, message, nil)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors surface to the caller instead of being swallowed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScoutError.
// Returns empty string if not a ScoutError.
func GetCode(err error) string {
	if se, ok := err.(*ScoutError); ok {
		return se.Code
	}
	return ""
}
