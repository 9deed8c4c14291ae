package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_StructuredError(t *testing.T) {
	// Given: an error with details and a suggestion
	err := New(ErrCodeBulkFailed, "bulk load aborted", errors.New("connection reset")).
		WithDetail("index", "documentation_index_k2j4h5g6").
		WithSuggestion("delete the orphan with 'docindex gc --delete'")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: all parts are visible
	assert.Contains(t, result, "Error: bulk load aborted")
	assert.Contains(t, result, "Cause: connection reset")
	assert.Contains(t, result, "index: documentation_index_k2j4h5g6")
	assert.Contains(t, result, "Hint: delete the orphan")
	assert.Contains(t, result, "Code: ERR_503_BULK_FAILED")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	// Given: a standard Go error
	err := errors.New("something went wrong")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: it is reported as internal
	assert.Contains(t, result, "something went wrong")
	assert.Contains(t, result, ErrCodeInternal)
	assert.NotContains(t, result, "Cause:")
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_StructuredError(t *testing.T) {
	// Given: an error with cause
	err := New(ErrCodeNetworkTimeout, "bulk request timed out", errors.New("deadline exceeded"))

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: the fields decode back
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeNetworkTimeout, decoded["code"])
	assert.Equal(t, "NETWORK", decoded["category"])
	assert.Equal(t, "deadline exceeded", decoded["cause"])
	assert.Equal(t, true, decoded["retryable"])
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	// Given: an error with a detail
	err := New(ErrCodeCutoverFailed, "bind failed", nil).WithDetail("alias", "docs")

	// When: formatting for log
	fields := FormatForLog(err)

	// Then: details are prefixed
	assert.Equal(t, ErrCodeCutoverFailed, fields["error_code"])
	assert.Equal(t, "docs", fields["detail_alias"])
	assert.Equal(t, "FATAL", fields["severity"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	fields := FormatForLog(errors.New("plain"))
	assert.Equal(t, map[string]any{"error": "plain"}, fields)
	assert.Nil(t, FormatForLog(nil))
}

func TestLogAttrs_AlternatesKeysAndValues(t *testing.T) {
	// Given: a structured error
	err := New(ErrCodeAliasState, "alias missing", nil)

	// When: flattening
	args := LogAttrs(err)

	// Then: keys are strings at even positions, sorted
	require.Equal(t, 0, len(args)%2)
	assert.Equal(t, "category", args[0])
	for i := 0; i < len(args); i += 2 {
		_, ok := args[i].(string)
		assert.True(t, ok)
	}
}
