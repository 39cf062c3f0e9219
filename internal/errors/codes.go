// Package errors provides structured error handling for Scout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Lifecycle errors (snapshot state)
//   - 2XX: Storage errors (cache, index files)
//   - 3XX: Provider errors (embedding backend)
//   - 4XX: Validation errors
//   - 5XX: Degraded-operation signals
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryLifecycle indicates snapshot lifecycle errors.
	CategoryLifecycle Category = "LIFECYCLE"
	// CategoryStorage indicates cache and index storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryProvider indicates embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryDegraded indicates non-fatal degraded operation.
	CategoryDegraded Category = "DEGRADED"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Lifecycle errors (100-199)
	ErrCodeSnapshotNotReady = "ERR_101_SNAPSHOT_NOT_READY"
	ErrCodeSnapshotRetired  = "ERR_102_SNAPSHOT_RETIRED"

	// Storage errors (200-299)
	ErrCodeIndexCorrupt   = "ERR_201_INDEX_CORRUPT"
	ErrCodeStorageFailure = "ERR_202_STORAGE_FAILURE"

	// Provider errors (300-399)
	ErrCodeProviderUnavailable = "ERR_301_PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "ERR_302_PROVIDER_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeQueryEmpty       = "ERR_401_QUERY_EMPTY"
	ErrCodeProviderMismatch = "ERR_402_PROVIDER_MISMATCH"
	ErrCodeInvalidInput     = "ERR_403_INVALID_INPUT"

	// Degraded-operation signals (500-599)
	ErrCodeParseDegraded   = "ERR_501_PARSE_DEGRADED"
	ErrCodeTimeoutExceeded = "ERR_502_TIMEOUT_EXCEEDED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryStorage
	}

	switch code[4] {
	case '1':
		return CategoryLifecycle
	case '2':
		return CategoryStorage
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryDegraded
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageFailure:
		return SeverityFatal
	case ErrCodeParseDegraded, ErrCodeTimeoutExceeded, ErrCodeIndexCorrupt,
		ErrCodeProviderUnavailable, ErrCodeProviderTimeout:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderUnavailable, ErrCodeProviderTimeout:
		return true
	default:
		return false
	}
}
