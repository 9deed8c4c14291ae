package bleve

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/char/html"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
)

// Engine component names and their bleve equivalents. ASCII folding is a
// token filter in the engine schema and a char filter in bleve; it is moved
// ahead of tokenisation, which gives the same terms for Latin text.
var (
	charFilters = map[string]string{
		"html_strip": html.Name,
	}
	tokenizers = map[string]string{
		"standard": unicode.Name,
	}
	tokenFilters = map[string]string{
		"lowercase": lowercase.Name,
		"stop":      en.StopName,
	}
	foldingFilters = map[string]string{
		"asciifolding": asciifolding.Name,
	}
	builtinAnalyzers = map[string]string{
		schema.StandardAnalyzer: standard.Name,
		"keyword":               keyword.Name,
	}
)

// buildMapping translates a schema definition into a bleve index mapping.
// search_analyzer has no bleve counterpart and is ignored: queries use the
// field's index-time analyzer.
func buildMapping(def *schema.Definition) (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = standard.Name

	for name, f := range def.Settings.Analysis.Filter {
		if f.Type != "edge_ngram" {
			return nil, unsupported("token filter %q of type %q", name, f.Type)
		}
		err := m.AddCustomTokenFilter(name, map[string]any{
			"type": edgengram.Name,
			"back": false,
			"min":  float64(f.MinGram),
			"max":  float64(f.MaxGram),
		})
		if err != nil {
			return nil, docerrors.New(docerrors.ErrCodeSchemaUnsupported,
				fmt.Sprintf("token filter %q", name), err)
		}
	}

	for name, a := range def.Settings.Analysis.Analyzer {
		cfg, err := translateAnalyzer(a, def.Settings.Analysis.Filter)
		if err != nil {
			return nil, err
		}
		if err := m.AddCustomAnalyzer(name, cfg); err != nil {
			return nil, docerrors.New(docerrors.ErrCodeSchemaUnsupported,
				fmt.Sprintf("analyzer %q", name), err)
		}
	}

	doc := bleve.NewDocumentStaticMapping()
	for field, spec := range def.Mappings.Properties {
		fm, err := fieldMapping(spec, def.Settings.Analysis.Analyzer)
		if err != nil {
			return nil, err
		}
		doc.AddFieldMappingsAt(field, fm)
	}
	m.DefaultMapping = doc
	return m, nil
}

func translateAnalyzer(a schema.Analyzer, defined map[string]schema.TokenFilter) (map[string]any, error) {
	if a.Type != "custom" {
		return nil, unsupported("analyzer type %q", a.Type)
	}

	var chars []string
	for _, cf := range a.CharFilter {
		name, ok := charFilters[cf]
		if !ok {
			return nil, unsupported("char filter %q", cf)
		}
		chars = append(chars, name)
	}

	tokenizer, ok := tokenizers[a.Tokenizer]
	if !ok {
		return nil, unsupported("tokenizer %q", a.Tokenizer)
	}

	var filters []string
	for _, tf := range a.Filter {
		if name, ok := foldingFilters[tf]; ok {
			chars = append(chars, name)
			continue
		}
		if name, ok := tokenFilters[tf]; ok {
			filters = append(filters, name)
			continue
		}
		if _, ok := defined[tf]; ok {
			filters = append(filters, tf)
			continue
		}
		return nil, unsupported("token filter %q", tf)
	}

	return map[string]any{
		"type":          custom.Name,
		"char_filters":  chars,
		"tokenizer":     tokenizer,
		"token_filters": filters,
	}, nil
}

func fieldMapping(f schema.Field, declared map[string]schema.Analyzer) (*mapping.FieldMapping, error) {
	var fm *mapping.FieldMapping
	switch f.Type {
	case schema.TypeText:
		fm = bleve.NewTextFieldMapping()
	case schema.TypeKeyword:
		fm = bleve.NewKeywordFieldMapping()
	default:
		return nil, unsupported("field type %q", f.Type)
	}

	if f.Analyzer != "" {
		if builtin, ok := builtinAnalyzers[f.Analyzer]; ok {
			fm.Analyzer = builtin
		} else if _, ok := declared[f.Analyzer]; ok {
			fm.Analyzer = f.Analyzer
		} else {
			return nil, unsupported("analyzer %q", f.Analyzer)
		}
	}

	fm.Store = true
	fm.Index = f.Indexed()
	if !fm.Index {
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
	}
	return fm, nil
}

func unsupported(format string, args ...any) error {
	return docerrors.New(docerrors.ErrCodeSchemaUnsupported,
		"bleve backend cannot express "+fmt.Sprintf(format, args...), nil)
}
