package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentation_DeclaresFiveFields(t *testing.T) {
	// Given: the documentation schema
	def := Documentation()

	// Then: exactly the record fields are mapped
	props := def.Mappings.Properties
	assert.Len(t, props, 5)
	assert.Equal(t, TypeText, props["url"].Type)
	assert.Equal(t, TypeKeyword, props["version"].Type)
	assert.Equal(t, TypeKeyword, props["type"].Type)
	assert.Equal(t, HTMLAnalyzer, props["content"].Analyzer)
	assert.Equal(t, StandardAnalyzer, props["content"].SearchAnalyzer)
	assert.False(t, props["summary"].Indexed())
	assert.True(t, props["content"].Indexed())
}

func TestDocumentation_AnalyzerChain(t *testing.T) {
	def := Documentation()

	analyzer := def.Settings.Analysis.Analyzer[HTMLAnalyzer]
	assert.Equal(t, []string{"html_strip"}, analyzer.CharFilter)
	assert.Equal(t, "standard", analyzer.Tokenizer)
	assert.Equal(t, []string{"lowercase", "asciifolding", "stop", EdgeNGramFilter}, analyzer.Filter)

	ngram := def.Settings.Analysis.Filter[EdgeNGramFilter]
	assert.Equal(t, TokenFilter{Type: "edge_ngram", MinGram: 3, MaxGram: 20}, ngram)
}

func TestDocumentation_JSONShape(t *testing.T) {
	// When: encoding the create-index body
	data, err := json.Marshal(Documentation())
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))

	// Then: it uses the engine's key names
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	summary := props["summary"].(map[string]any)
	assert.Equal(t, false, summary["index"])
	_, hasIndex := props["url"].(map[string]any)["index"]
	assert.False(t, hasIndex, "unset index flag is omitted")

	filter := body["settings"].(map[string]any)["analysis"].(map[string]any)["filter"].(map[string]any)
	assert.Equal(t, float64(3), filter[EdgeNGramFilter].(map[string]any)["min_gram"])
}
