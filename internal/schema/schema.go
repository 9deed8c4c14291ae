// Package schema declares the mapping and analysis settings of a
// documentation index generation, in the shape the search engine's
// create-index API accepts.
package schema

// Field types understood by the backends.
const (
	TypeText    = "text"
	TypeKeyword = "keyword"
)

// Names used by the documentation schema.
const (
	HTMLAnalyzer     = "html_analyzer"
	StandardAnalyzer = "standard"
	EdgeNGramFilter  = "edge_ngram_filter"
)

// Definition is the body of a create-index request.
type Definition struct {
	Settings Settings `json:"settings"`
	Mappings Mappings `json:"mappings"`
}

// Settings holds index settings. Only analysis is declared.
type Settings struct {
	Analysis Analysis `json:"analysis"`
}

// Analysis declares custom analyzers and token filters.
type Analysis struct {
	Analyzer map[string]Analyzer    `json:"analyzer,omitempty"`
	Filter   map[string]TokenFilter `json:"filter,omitempty"`
}

// Analyzer is a custom analyzer chain.
type Analyzer struct {
	Type       string   `json:"type"`
	CharFilter []string `json:"char_filter,omitempty"`
	Tokenizer  string   `json:"tokenizer"`
	Filter     []string `json:"filter,omitempty"`
}

// TokenFilter is a parameterised token filter.
type TokenFilter struct {
	Type    string `json:"type"`
	MinGram int    `json:"min_gram,omitempty"`
	MaxGram int    `json:"max_gram,omitempty"`
}

// Mappings declares the document fields.
type Mappings struct {
	Properties map[string]Field `json:"properties"`
}

// Field is one mapped document field.
type Field struct {
	Type           string `json:"type"`
	Analyzer       string `json:"analyzer,omitempty"`
	SearchAnalyzer string `json:"search_analyzer,omitempty"`
	// Index is a pointer so that an unset value is omitted and the engine default applies.
	Index *bool `json:"index,omitempty"`
}

// Indexed reports whether the field goes into the inverted index.
func (f Field) Indexed() bool {
	return f.Index == nil || *f.Index
}

// Documentation returns the schema of a documentation generation:
// content is analysed with HTML stripping, ASCII folding, stopword removal
// and 3 to 20 character edge n-grams, and queried with the standard analyzer;
// summary is stored for display only.
func Documentation() *Definition {
	noIndex := false
	return &Definition{
		Settings: Settings{
			Analysis: Analysis{
				Analyzer: map[string]Analyzer{
					HTMLAnalyzer: {
						Type:       "custom",
						CharFilter: []string{"html_strip"},
						Tokenizer:  "standard",
						Filter:     []string{"lowercase", "asciifolding", "stop", EdgeNGramFilter},
					},
				},
				Filter: map[string]TokenFilter{
					EdgeNGramFilter: {Type: "edge_ngram", MinGram: 3, MaxGram: 20},
				},
			},
		},
		Mappings: Mappings{
			Properties: map[string]Field{
				"url":     {Type: TypeText},
				"content": {Type: TypeText, Analyzer: HTMLAnalyzer, SearchAnalyzer: StandardAnalyzer},
				"version": {Type: TypeKeyword},
				"summary": {Type: TypeText, Index: &noIndex},
				"type":    {Type: TypeKeyword},
			},
		},
	}
}
