// Package errors provides structured error handling for docindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (corpus files, lock, local data)
//   - 3XX: Network and search engine transport errors
//   - 4XX: Validation errors
//   - 5XX: Pipeline errors (provisioning, loading, cutover)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates transport errors talking to the search engine.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryPipeline indicates a failed ingestion stage.
	CategoryPipeline Category = "PIPELINE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a transient condition.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound     = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      = "ERR_102_CONFIG_INVALID"
	ErrCodeCredentialsMissing = "ERR_103_CREDENTIALS_MISSING"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileRead     = "ERR_202_FILE_READ"
	ErrCodeRootNotFound = "ERR_203_ROOT_NOT_FOUND"
	ErrCodeLockHeld     = "ERR_204_LOCK_HELD"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeEngineRejected     = "ERR_303_ENGINE_REJECTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeSchemaUnsupported = "ERR_402_SCHEMA_UNSUPPORTED"

	// Pipeline errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeProvisionFailed = "ERR_502_PROVISION_FAILED"
	ErrCodeBulkFailed      = "ERR_503_BULK_FAILED"
	ErrCodePartialLoad     = "ERR_504_PARTIAL_LOAD"
	ErrCodeCutoverFailed   = "ERR_505_CUTOVER_FAILED"
	ErrCodeAliasState      = "ERR_506_ALIAS_STATE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryPipeline
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryPipeline
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeCredentialsMissing,
		ErrCodeFileRead, ErrCodeRootNotFound, ErrCodeLockHeld,
		ErrCodeSchemaUnsupported,
		ErrCodeProvisionFailed, ErrCodeBulkFailed, ErrCodePartialLoad,
		ErrCodeCutoverFailed, ErrCodeAliasState:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether a code describes a transient condition.
// Nothing in the pipeline retries; the flag is surfaced to the operator.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable:
		return true
	default:
		return false
	}
}
