package bleve

import (
	"context"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
)

func openEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Options{DataDir: t.TempDir(), OpenHandles: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOpen_RequiresDataDir(t *testing.T) {
	_, err := Open(Options{})

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestBuildMapping_Documentation(t *testing.T) {
	// Given: the documentation schema
	def := schema.Documentation()

	// When: translating to bleve
	m, err := buildMapping(def)

	// Then: the mapping validates and carries the custom analyzer
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Contains(t, m.CustomAnalysis.Analyzers, schema.HTMLAnalyzer)
	assert.Contains(t, m.CustomAnalysis.TokenFilters, schema.EdgeNGramFilter)
}

func TestBuildMapping_RejectsUnknownTokenizer(t *testing.T) {
	def := schema.Documentation()
	a := def.Settings.Analysis.Analyzer[schema.HTMLAnalyzer]
	a.Tokenizer = "whitespace_pattern"
	def.Settings.Analysis.Analyzer[schema.HTMLAnalyzer] = a

	_, err := buildMapping(def)

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeSchemaUnsupported, docerrors.GetCode(err))
}

func TestBuildMapping_RejectsUnknownFieldType(t *testing.T) {
	def := schema.Documentation()
	def.Mappings.Properties["rank"] = schema.Field{Type: "long"}

	_, err := buildMapping(def)

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeSchemaUnsupported, docerrors.GetCode(err))
}

func TestEngine_CreateBulkAndSearch(t *testing.T) {
	// Given: a fresh generation
	e := openEngine(t)
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_aaaa1111", schema.Documentation()))

	// When: loading two documents
	resp, err := e.Bulk(ctx, "documentation_index_aaaa1111", []any{
		map[string]any{"url": "/docs/install", "content": "<h1>Installation</h1><p>Run the installer.</p>", "type": "DOC"},
		map[string]any{"url": "/docs/usage", "content": "<section>Usage notes</section>", "type": "DOC"},
	})

	// Then: both are written with generated IDs
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Zero(t, resp.Failed())
	assert.NotEqual(t, resp.Items[0].ID, resp.Items[1].ID)

	count, err := e.DocCount(ctx, "documentation_index_aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	// And: a prefix of a word finds its document through the edge n-grams
	idx, err := e.handle(ctx, "documentation_index_aaaa1111")
	require.NoError(t, err)
	q := bleve.NewMatchQuery("install")
	q.SetField("content")
	res, err := idx.Search(bleve.NewSearchRequest(q))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)

	// And: markup is not indexed
	q = bleve.NewMatchQuery("section")
	q.SetField("content")
	res, err = idx.Search(bleve.NewSearchRequest(q))
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestEngine_CreateIndex_Duplicate(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_dup", schema.Documentation()))

	err := e.CreateIndex(ctx, "documentation_index_dup", schema.Documentation())

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeEngineRejected, docerrors.GetCode(err))
}

func TestEngine_Bulk_UnknownIndex(t *testing.T) {
	e := openEngine(t)

	_, err := e.Bulk(context.Background(), "missing", []any{map[string]any{"url": "/a"}})

	assert.True(t, engine.IsNotFound(err))
}

func TestEngine_AliasLifecycle(t *testing.T) {
	// Given: two generations, the old one bound
	e := openEngine(t)
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_old", schema.Documentation()))
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_new", schema.Documentation()))
	require.NoError(t, e.UpdateAliases(ctx, []engine.AliasAction{engine.AddAlias("documentation_index_old", "docs")}))

	bound, err := e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation_index_old"}, bound)

	// When: swapping in one update
	err = e.UpdateAliases(ctx, []engine.AliasAction{
		engine.RemoveAlias("documentation_index*", "docs"),
		engine.AddAlias("documentation_index_new", "docs"),
	})
	require.NoError(t, err)

	// Then: only the new generation is bound
	bound, err = e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation_index_new"}, bound)
}

func TestEngine_UpdateAliases_AllOrNothing(t *testing.T) {
	// Given: one bound generation
	e := openEngine(t)
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_old", schema.Documentation()))
	require.NoError(t, e.UpdateAliases(ctx, []engine.AliasAction{engine.AddAlias("documentation_index_old", "docs")}))

	// When: the add half of a swap names a missing index
	err := e.UpdateAliases(ctx, []engine.AliasAction{
		engine.RemoveAlias("documentation_index*", "docs"),
		engine.AddAlias("documentation_index_missing", "docs"),
	})

	// Then: the remove half is rolled back
	assert.True(t, engine.IsNotFound(err))
	bound, err := e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation_index_old"}, bound)
}

func TestEngine_RemoveUnboundAlias(t *testing.T) {
	e := openEngine(t)

	err := e.UpdateAliases(context.Background(), []engine.AliasAction{engine.RemoveAlias("documentation_index*", "docs")})

	assert.True(t, engine.IsNotFound(err))
}

func TestEngine_GetAlias_Unknown(t *testing.T) {
	e := openEngine(t)

	bound, err := e.GetAlias(context.Background(), "nothing")

	require.NoError(t, err)
	assert.Empty(t, bound)
}

func TestEngine_ListAndDelete(t *testing.T) {
	// Given: three generations, more than the handle cache holds
	e := openEngine(t)
	ctx := context.Background()
	for _, name := range []string{"documentation_index_c", "documentation_index_a", "documentation_index_b"} {
		require.NoError(t, e.CreateIndex(ctx, name, schema.Documentation()))
	}
	require.NoError(t, e.CreateIndex(ctx, "other", schema.Documentation()))
	require.NoError(t, e.UpdateAliases(ctx, []engine.AliasAction{engine.AddAlias("documentation_index_a", "docs")}))
	_, err := e.Bulk(ctx, "documentation_index_a", []any{map[string]any{"url": "/x", "content": "hello"}})
	require.NoError(t, err)

	// When: listing by prefix
	infos, err := e.ListIndices(ctx, "documentation_index*")
	require.NoError(t, err)

	// Then: matching indices come back sorted with counts
	require.Len(t, infos, 3)
	assert.Equal(t, "documentation_index_a", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].DocCount)
	assert.Positive(t, infos[0].SizeBytes)

	// When: deleting the bound generation
	require.NoError(t, e.DeleteIndex(ctx, "documentation_index_a"))

	// Then: its binding and directory are gone
	bound, err := e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, bound)
	assert.NoDirExists(t, e.indexPath("documentation_index_a"))
	assert.True(t, engine.IsNotFound(e.DeleteIndex(ctx, "documentation_index_a")))
}

func TestEngine_ReopenKeepsCatalog(t *testing.T) {
	// Given: an engine with a bound generation, closed
	dir := t.TempDir()
	ctx := context.Background()
	e, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, e.CreateIndex(ctx, "documentation_index_keep", schema.Documentation()))
	_, err = e.Bulk(ctx, "documentation_index_keep", []any{map[string]any{"url": "/x", "content": "persisted"}})
	require.NoError(t, err)
	require.NoError(t, e.UpdateAliases(ctx, []engine.AliasAction{engine.AddAlias("documentation_index_keep", "docs")}))
	require.NoError(t, e.Close())

	// When: reopening
	e, err = Open(Options{DataDir: dir})
	require.NoError(t, err)
	defer e.Close()

	// Then: bindings and documents survive
	bound, err := e.GetAlias(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation_index_keep"}, bound)
	count, err := e.DocCount(ctx, "documentation_index_keep")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
