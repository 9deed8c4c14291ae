// Package engine defines the search engine operations the ingestion
// pipeline consumes: index creation, bulk writes, alias queries and updates,
// and index listing/deletion for cleanup.
package engine

import (
	"context"

	"github.com/Aman-CERP/docindex/internal/schema"
)

// Engine is a search engine backend.
type Engine interface {
	// Name identifies the backend in logs ("opensearch", "bleve", "memory").
	Name() string

	// CreateIndex creates index name with the given schema.
	CreateIndex(ctx context.Context, name string, def *schema.Definition) error

	// Bulk writes docs into index in one request. A returned error means the
	// request as a whole failed; per-document failures are reported in the
	// response items, one per document, in request order.
	Bulk(ctx context.Context, index string, docs []any) (*BulkResponse, error)

	// GetAlias returns the indices alias resolves to, sorted. An unknown
	// alias yields an empty slice and no error.
	GetAlias(ctx context.Context, alias string) ([]string, error)

	// UpdateAliases applies all actions in one request.
	UpdateAliases(ctx context.Context, actions []AliasAction) error

	// ListIndices lists indices whose names match pattern ("*" wildcards).
	ListIndices(ctx context.Context, pattern string) ([]IndexInfo, error)

	// DeleteIndex deletes one index.
	DeleteIndex(ctx context.Context, name string) error

	// Close releases backend resources.
	Close() error
}

// BulkResponse is the outcome of one bulk request.
type BulkResponse struct {
	Took   int64
	Errors bool
	Items  []BulkItem
}

// Failed counts items that were not written.
func (r *BulkResponse) Failed() int {
	n := 0
	for _, item := range r.Items {
		if !item.OK() {
			n++
		}
	}
	return n
}

// BulkItem is the outcome for one document of a bulk request.
type BulkItem struct {
	Index     string
	ID        string
	Status    int
	ErrorType string
	Reason    string
}

// OK reports whether the document was written.
func (i BulkItem) OK() bool {
	return i.Status >= 200 && i.Status < 300 && i.ErrorType == ""
}

// ActionType is the kind of alias update.
type ActionType string

const (
	// ActionAdd binds an alias to an index.
	ActionAdd ActionType = "add"
	// ActionRemove unbinds an alias from the indices matching Index.
	ActionRemove ActionType = "remove"
)

// AliasAction is one entry of an alias update. For removals Index may be a
// wildcard pattern.
type AliasAction struct {
	Type  ActionType
	Index string
	Alias string
}

// AddAlias returns an ActionAdd.
func AddAlias(index, alias string) AliasAction {
	return AliasAction{Type: ActionAdd, Index: index, Alias: alias}
}

// RemoveAlias returns an ActionRemove.
func RemoveAlias(index, alias string) AliasAction {
	return AliasAction{Type: ActionRemove, Index: index, Alias: alias}
}

// IndexInfo describes one index for diagnostics and cleanup.
type IndexInfo struct {
	Name      string
	DocCount  int64
	SizeBytes int64
	Health    string
}
