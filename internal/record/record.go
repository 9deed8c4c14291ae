// Package record turns documentation files into search index records.
package record

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/walker"
)

// Placeholder values. Version and summary are not derived from document
// metadata yet; every record carries these constants.
const (
	DocType        = "DOC"
	DefaultVersion = "1.0.0"
	DefaultSummary = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."
)

// Suffixes stripped from file paths when deriving URLs, checked in order.
var urlSuffixes = []string{".markdown", ".md"}

// Record is one document as written to the search engine.
type Record struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Version string `json:"version"`
	Summary string `json:"summary"`
	Type    string `json:"type"`
}

// Transformer maps files to records.
type Transformer struct {
	Type    string
	Version string
	Summary string
}

// NewTransformer returns a Transformer filled with the placeholder constants.
func NewTransformer() *Transformer {
	return &Transformer{
		Type:    DocType,
		Version: DefaultVersion,
		Summary: DefaultSummary,
	}
}

// Transform reads path and builds its record, deriving the URL relative to
// prefix. Undecodable UTF-8 sequences are dropped; a failed read is an error.
func (t *Transformer) Transform(path, prefix string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to read %s", path), err)
	}

	return &Record{
		URL:     DeriveURL(path, prefix),
		Content: DecodeLossy(raw),
		Version: t.Version,
		Summary: t.Summary,
		Type:    t.Type,
	}, nil
}

// DeriveURL strips the first matching markdown suffix, then prefix, then
// every underscore, and returns the result with forward slashes.
//
//	DeriveURL("/repo/_docs/a_b/my_page.md", "/repo") == "/docs/ab/mypage"
func DeriveURL(path, prefix string) string {
	url := path
	for _, suffix := range urlSuffixes {
		if strings.HasSuffix(url, suffix) {
			url = strings.TrimSuffix(url, suffix)
			break
		}
	}
	url = strings.TrimPrefix(url, prefix)
	url = strings.ReplaceAll(url, "_", "")
	return filepath.ToSlash(url)
}

// DecodeLossy decodes UTF-8, discarding invalid byte sequences.
func DecodeLossy(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "")
}

// Stream adapts a walk into a lazy record sequence. Each file is read only
// when the consumer pulls it. A walk error or read error is yielded once and
// ends the sequence. Callers that stop early should cancel the walk context.
func (t *Transformer) Stream(ctx context.Context, files <-chan walker.Result, prefix string) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			var (
				res walker.Result
				ok  bool
			)
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case res, ok = <-files:
			}
			if !ok {
				return
			}
			if res.Err != nil {
				yield(nil, res.Err)
				return
			}

			rec, err := t.Transform(res.Path, prefix)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
