package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/schema"
)

type doc struct {
	URL string `json:"url"`
}

func TestEngine_CreateAndBulk(t *testing.T) {
	// Given: a created index
	ctx := context.Background()
	e := New()
	require.NoError(t, e.CreateIndex(ctx, "docs_1", schema.Documentation()))

	// When: writing two documents
	resp, err := e.Bulk(ctx, "docs_1", []any{doc{URL: "/a"}, map[string]any{"url": "/b"}})
	require.NoError(t, err)

	// Then: both are stored and reported
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 0, resp.Failed())
	assert.False(t, resp.Errors)
	docs := e.Documents("docs_1")
	require.Len(t, docs, 2)
	assert.Equal(t, "/a", docs[0]["url"])
	assert.NotNil(t, e.Schema("docs_1"))
}

func TestEngine_CreateDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.CreateIndex(ctx, "x", nil))

	err := e.CreateIndex(ctx, "x", nil)

	require.Error(t, err)
}

func TestEngine_BulkMissingIndex(t *testing.T) {
	_, err := New().Bulk(context.Background(), "missing", []any{doc{}})

	assert.True(t, engine.IsNotFound(err))
}

func TestEngine_RejectDocuments(t *testing.T) {
	// Given: a rule refusing one url
	ctx := context.Background()
	e := New()
	require.NoError(t, e.CreateIndex(ctx, "x", nil))
	e.RejectDocuments(func(d map[string]any) (string, string) {
		if d["url"] == "/bad" {
			return "mapper_parsing_exception", "failed to parse"
		}
		return "", ""
	})

	// When: writing a good and a bad document
	resp, err := e.Bulk(ctx, "x", []any{doc{URL: "/good"}, doc{URL: "/bad"}})
	require.NoError(t, err)

	// Then: the outcome is per document
	assert.True(t, resp.Errors)
	assert.True(t, resp.Items[0].OK())
	assert.False(t, resp.Items[1].OK())
	assert.Equal(t, "mapper_parsing_exception", resp.Items[1].ErrorType)
	assert.Len(t, e.Documents("x"), 1)
}

func TestEngine_FailBulkCall(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.CreateIndex(ctx, "x", nil))
	boom := errors.New("connection reset")
	e.FailBulkCall(2, boom)

	_, err1 := e.Bulk(ctx, "x", []any{doc{}})
	_, err2 := e.Bulk(ctx, "x", []any{doc{}})
	_, err3 := e.Bulk(ctx, "x", []any{doc{}})

	assert.NoError(t, err1)
	assert.ErrorIs(t, err2, boom)
	assert.NoError(t, err3)
	assert.Len(t, e.Documents("x"), 2)
}

func TestEngine_AliasLifecycle(t *testing.T) {
	// Given: two generations, the old one aliased
	ctx := context.Background()
	e := New()
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_old", nil))
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_new", nil))
	e.BindAlias("documentation_index_old", "docs")

	// When: swapping in one request
	err := e.UpdateAliases(ctx, []engine.AliasAction{
		engine.RemoveAlias("documentation_index*", "docs"),
		engine.AddAlias("documentation_index_new", "docs"),
	})
	require.NoError(t, err)

	// Then: only the new generation is bound
	bound, err := e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation_index_new"}, bound)
}

func TestEngine_UpdateAliasesAllOrNothing(t *testing.T) {
	// Given: an aliased index
	ctx := context.Background()
	e := New()
	e.BindAlias("documentation_index_old", "docs")

	// When: the second action refers to a missing index
	err := e.UpdateAliases(ctx, []engine.AliasAction{
		engine.RemoveAlias("documentation_index*", "docs"),
		engine.AddAlias("missing", "docs"),
	})

	// Then: nothing changed
	require.Error(t, err)
	bound, _ := e.GetAlias(ctx, "docs")
	assert.Equal(t, []string{"documentation_index_old"}, bound)
}

func TestEngine_RemoveUnboundAliasIsNotFound(t *testing.T) {
	err := New().UpdateAliases(context.Background(), []engine.AliasAction{
		engine.RemoveAlias("documentation_index*", "docs"),
	})

	assert.True(t, engine.IsNotFound(err))
}

func TestEngine_GetAliasUnknown(t *testing.T) {
	bound, err := New().GetAlias(context.Background(), "docs")

	require.NoError(t, err)
	assert.Empty(t, bound)
}

func TestEngine_ListAndDelete(t *testing.T) {
	// Given: indices with and without the prefix
	ctx := context.Background()
	e := New()
	for _, name := range []string{"documentation_index_b", "documentation_index_a", "other"} {
		require.NoError(t, e.CreateIndex(ctx, name, nil))
	}
	e.BindAlias("documentation_index_a", "docs")

	// When: listing by prefix and deleting the aliased one
	infos, err := e.ListIndices(ctx, "documentation_index*")
	require.NoError(t, err)
	require.NoError(t, e.DeleteIndex(ctx, "documentation_index_a"))

	// Then: listing is sorted and the alias went with the index
	require.Len(t, infos, 2)
	assert.Equal(t, "documentation_index_a", infos[0].Name)
	bound, _ := e.GetAlias(ctx, "docs")
	assert.Empty(t, bound)
	assert.True(t, engine.IsNotFound(e.DeleteIndex(ctx, "documentation_index_a")))
}

func TestEngine_CallsRecorded(t *testing.T) {
	ctx := context.Background()
	e := New()
	_ = e.CreateIndex(ctx, "x", nil)
	_, _ = e.GetAlias(ctx, "docs")
	_ = e.UpdateAliases(ctx, []engine.AliasAction{engine.AddAlias("x", "docs")})

	assert.Equal(t, []string{
		"create_index x",
		"get_alias docs",
		"update_aliases [add x->docs]",
	}, e.Calls())
}
