package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping it in a structured error
	err := New(ErrCodeNetworkUnavailable, "search engine unreachable", originalErr)

	// Then: unwrapping returns the original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "bulk error",
			code:     ErrCodeBulkFailed,
			message:  "batch 3 failed",
			expected: "[ERR_503_BULK_FAILED] batch 3 failed",
		},
		{
			name:     "network error",
			code:     ErrCodeNetworkTimeout,
			message:  "request timed out",
			expected: "[ERR_301_NETWORK_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Error_IncludesDistinctCause(t *testing.T) {
	// Given: an error whose cause says something different
	err := New(ErrCodeProvisionFailed, "create index failed", errors.New("resource_already_exists"))

	// Then: both appear in the message
	assert.Equal(t, "[ERR_502_PROVISION_FAILED] create index failed: resource_already_exists", err.Error())
}

func TestError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeCutoverFailed, "bind failed", nil)
	err2 := New(ErrCodeCutoverFailed, "unbind failed", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestError_Is_ThroughFmtWrapping(t *testing.T) {
	// Given: a structured error wrapped by fmt.Errorf
	inner := New(ErrCodeAliasState, "alias unbound", nil)
	outer := fmt.Errorf("cutover: %w", inner)

	// Then: the code is still discoverable
	assert.True(t, errors.Is(outer, New(ErrCodeAliasState, "", nil)))
	assert.Equal(t, ErrCodeAliasState, GetCode(outer))
	assert.True(t, IsFatal(outer))
}

func TestError_WithDetail_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeBulkFailed, "batch failed", nil)

	// When: adding details
	err = err.WithDetail("index", "documentation_index_abc12345").WithDetail("batch", "4")

	// Then: details are present
	assert.Equal(t, "documentation_index_abc12345", err.Details["index"])
	assert.Equal(t, "4", err.Details["batch"])
}

func TestError_WithSuggestion(t *testing.T) {
	// Given: an error
	err := New(ErrCodeCredentialsMissing, "no endpoint", nil)

	// When: adding a suggestion
	err = err.WithSuggestion("export SEARCH_ENDPOINT")

	// Then: suggestion is kept
	assert.Equal(t, "export SEARCH_ENDPOINT", err.Suggestion)
}

func TestNew_DerivesCategory(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileRead, CategoryIO},
		{ErrCodeEngineRejected, CategoryNetwork},
		{ErrCodeSchemaUnsupported, CategoryValidation},
		{ErrCodePartialLoad, CategoryPipeline},
		{"BAD", CategoryPipeline},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "x", nil).Category)
		})
	}
}

func TestNew_DerivesSeverityAndRetryable(t *testing.T) {
	// Pipeline stage failures abort the run
	for _, code := range []string{
		ErrCodeProvisionFailed, ErrCodeBulkFailed, ErrCodePartialLoad,
		ErrCodeCutoverFailed, ErrCodeAliasState, ErrCodeLockHeld,
	} {
		err := New(code, "x", nil)
		assert.Equal(t, SeverityFatal, err.Severity, code)
		assert.False(t, err.Retryable, code)
	}

	// Transport conditions are transient
	for _, code := range []string{ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable} {
		err := New(code, "x", nil)
		assert.Equal(t, SeverityWarning, err.Severity, code)
		assert.True(t, err.Retryable, code)
	}

	assert.Equal(t, SeverityError, New(ErrCodeEngineRejected, "x", nil).Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestHelpers_NonStructuredError(t *testing.T) {
	// Given: a plain error
	err := errors.New("plain")

	// Then: helpers report zero values
	assert.Empty(t, GetCode(err))
	assert.Empty(t, GetCategory(err))
	assert.False(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(nil))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeConfigInvalid, ConfigError("bad", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("bad", nil).Code)
	assert.Equal(t, ErrCodeInternal, InternalError("bad", nil).Code)
}
