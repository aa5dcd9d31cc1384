// Package errors provides structured error handling for algoliasync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Content source and local storage errors
//   - 3XX: Remote index service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration or credential errors.
	CategoryConfig Category = "CONFIG"
	// CategorySource indicates content source and local storage errors.
	CategorySource Category = "SOURCE"
	// CategoryRemote indicates failures talking to the index service.
	CategoryRemote Category = "REMOTE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current command.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one operation; the caller may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound       = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid        = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingCredentials   = "ERR_103_MISSING_CREDENTIALS"
	ErrCodeDuplicateContentType = "ERR_104_DUPLICATE_CONTENT_TYPE"

	// Source errors (200-299)
	ErrCodeItemNotFound   = "ERR_201_ITEM_NOT_FOUND"
	ErrCodeSourceFailed   = "ERR_202_SOURCE_FAILED"
	ErrCodeCacheFailed    = "ERR_203_CACHE_FAILED"
	ErrCodeLockHeld       = "ERR_204_LOCK_HELD"
	ErrCodeCorruptStorage = "ERR_205_CORRUPT_STORAGE"

	// Remote errors (300-399)
	ErrCodeRemoteTimeout     = "ERR_301_REMOTE_TIMEOUT"
	ErrCodeRemoteUnavailable = "ERR_302_REMOTE_UNAVAILABLE"
	ErrCodeRemoteRejected    = "ERR_303_REMOTE_REJECTED"
	ErrCodeObjectNotFound    = "ERR_304_OBJECT_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput       = "ERR_401_INVALID_INPUT"
	ErrCodeUnknownContentType = "ERR_402_UNKNOWN_CONTENT_TYPE"
	ErrCodeNoItems            = "ERR_403_NO_ITEMS"
	ErrCodeInvalidFilter      = "ERR_404_INVALID_FILTER"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeIndexFailed = "ERR_502_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategorySource
	case '3':
		return CategoryRemote
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeMissingCredentials, ErrCodeConfigInvalid, ErrCodeDuplicateContentType, ErrCodeCorruptStorage:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRemoteTimeout, ErrCodeRemoteUnavailable:
		return true
	default:
		return false
	}
}
