package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

func TestBulkResponse_Failed(t *testing.T) {
	resp := &BulkResponse{Items: []BulkItem{
		{Status: 201},
		{Status: 400, ErrorType: "mapper_parsing_exception"},
		{Status: 200},
		{Status: 429, ErrorType: "es_rejected_execution_exception"},
	}}

	assert.Equal(t, 2, resp.Failed())
}

func TestBulkItem_OK(t *testing.T) {
	assert.True(t, BulkItem{Status: 201}.OK())
	assert.False(t, BulkItem{Status: 201, ErrorType: "x"}.OK())
	assert.False(t, BulkItem{Status: 500}.OK())
}

func TestPattern_Match(t *testing.T) {
	p, err := CompilePattern("documentation_index*")
	require.NoError(t, err)

	assert.True(t, p.Match("documentation_index_ab12cd34"))
	assert.True(t, p.Match("documentation_index"))
	assert.False(t, p.Match("docs"))
	assert.False(t, p.Match("other_documentation_index_x"))
	assert.Equal(t, "documentation_index*", p.String())
}

func TestPattern_EmptyMatchesAll(t *testing.T) {
	p, err := CompilePattern("")
	require.NoError(t, err)

	assert.True(t, p.Match("anything"))
}

func TestClassify(t *testing.T) {
	// Given: errors from various transport layers
	timeout := fmt.Errorf("post: %w", context.DeadlineExceeded)
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	other := errors.New("decode failure")

	// Then: each maps to the matching code
	assert.Equal(t, docerrors.ErrCodeNetworkTimeout, docerrors.GetCode(Classify("bulk", timeout, docerrors.ErrCodeBulkFailed)))
	assert.Equal(t, docerrors.ErrCodeNetworkUnavailable, docerrors.GetCode(Classify("bulk", refused, docerrors.ErrCodeBulkFailed)))
	assert.Equal(t, docerrors.ErrCodeBulkFailed, docerrors.GetCode(Classify("bulk", other, docerrors.ErrCodeBulkFailed)))
	assert.Nil(t, Classify("bulk", nil, docerrors.ErrCodeBulkFailed))
}

func TestClassify_KeepsStructuredErrors(t *testing.T) {
	in := docerrors.New(docerrors.ErrCodeEngineRejected, "rejected", nil)

	assert.Same(t, in, Classify("create index", in, docerrors.ErrCodeProvisionFailed))
}

func TestRejected_IsNotFound(t *testing.T) {
	err := Rejected("get alias", 404, `{"error":"alias [docs] missing"}`)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(Rejected("get alias", 500, "")))
	assert.False(t, IsNotFound(errors.New("404")))
}
