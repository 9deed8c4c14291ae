// Package memory is an in-process search engine backend. It keeps indices
// and aliases in maps, records every call, and can be told to fail specific
// operations, which makes it the backend for dry runs and pipeline tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
)

// RejectFunc decides whether a document is refused. A non-empty errType
// marks the document as failed with the given reason.
type RejectFunc func(doc map[string]any) (errType, reason string)

type index struct {
	schema    *schema.Definition
	docs      []map[string]any
	createdAt time.Time
}

// Engine is the in-memory backend. The zero value is not usable; call New.
type Engine struct {
	mu      sync.Mutex
	indices map[string]*index
	aliases map[string]map[string]struct{}
	calls   []string

	bulkCalls   int
	aliasCalls  int
	failBulk    map[int]error
	failAlias   map[int]error
	failCreate  error
	failGetOnce error
	reject      RejectFunc
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		indices:   make(map[string]*index),
		aliases:   make(map[string]map[string]struct{}),
		failBulk:  make(map[int]error),
		failAlias: make(map[int]error),
	}
}

var _ engine.Engine = (*Engine)(nil)

// Name implements engine.Engine.
func (e *Engine) Name() string { return "memory" }

// FailBulkCall makes the n-th bulk request (1-based) fail with err.
func (e *Engine) FailBulkCall(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failBulk[n] = err
}

// FailAliasUpdate makes the n-th alias update request (1-based) fail with err.
func (e *Engine) FailAliasUpdate(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAlias[n] = err
}

// FailCreate makes every create-index request fail with err.
func (e *Engine) FailCreate(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failCreate = err
}

// FailGetAliasOnce makes the next alias query fail with err.
func (e *Engine) FailGetAliasOnce(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failGetOnce = err
}

// RejectDocuments installs a per-document failure rule for bulk requests.
func (e *Engine) RejectDocuments(fn RejectFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reject = fn
}

// Calls returns the operations received so far, one line per request.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Documents returns the documents stored in name.
func (e *Engine) Documents(name string) []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.indices[name]
	if !ok {
		return nil
	}
	return append([]map[string]any(nil), idx.docs...)
}

// Schema returns the schema name was created with.
func (e *Engine) Schema(name string) *schema.Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indices[name]; ok {
		return idx.schema
	}
	return nil
}

// BindAlias binds alias to name directly, bypassing call recording.
// Tests use it to set up a prior generation.
func (e *Engine) BindAlias(name, alias string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indices[name]; !ok {
		e.indices[name] = &index{createdAt: time.Now()}
	}
	if e.aliases[alias] == nil {
		e.aliases[alias] = make(map[string]struct{})
	}
	e.aliases[alias][name] = struct{}{}
}

// CreateIndex implements engine.Engine.
func (e *Engine) CreateIndex(ctx context.Context, name string, def *schema.Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("create_index %s", name)

	if err := ctx.Err(); err != nil {
		return err
	}
	if e.failCreate != nil {
		return e.failCreate
	}
	if _, exists := e.indices[name]; exists {
		return engine.Rejected("create index", http.StatusBadRequest,
			fmt.Sprintf("resource_already_exists_exception: index [%s] already exists", name))
	}

	e.indices[name] = &index{schema: def, createdAt: time.Now()}
	return nil
}

// Bulk implements engine.Engine.
func (e *Engine) Bulk(ctx context.Context, name string, docs []any) (*engine.BulkResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bulkCalls++
	e.record("bulk %s %d", name, len(docs))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := e.failBulk[e.bulkCalls]; ok {
		return nil, err
	}

	idx, ok := e.indices[name]
	if !ok {
		return nil, engine.Rejected("bulk", http.StatusNotFound,
			fmt.Sprintf("index_not_found_exception: no such index [%s]", name))
	}

	start := time.Now()
	resp := &engine.BulkResponse{Items: make([]engine.BulkItem, 0, len(docs))}
	for _, doc := range docs {
		body, err := toMap(doc)
		if err != nil {
			resp.Errors = true
			resp.Items = append(resp.Items, engine.BulkItem{
				Index: name, Status: http.StatusBadRequest,
				ErrorType: "mapper_parsing_exception", Reason: err.Error(),
			})
			continue
		}
		if e.reject != nil {
			if errType, reason := e.reject(body); errType != "" {
				resp.Errors = true
				resp.Items = append(resp.Items, engine.BulkItem{
					Index: name, Status: http.StatusBadRequest,
					ErrorType: errType, Reason: reason,
				})
				continue
			}
		}
		id := uuid.NewString()
		idx.docs = append(idx.docs, body)
		resp.Items = append(resp.Items, engine.BulkItem{Index: name, ID: id, Status: http.StatusCreated})
	}
	resp.Took = time.Since(start).Milliseconds()
	return resp, nil
}

// GetAlias implements engine.Engine.
func (e *Engine) GetAlias(ctx context.Context, alias string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("get_alias %s", alias)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.failGetOnce; err != nil {
		e.failGetOnce = nil
		return nil, err
	}
	return sortedKeys(e.aliases[alias]), nil
}

// UpdateAliases implements engine.Engine. Actions apply all or nothing.
func (e *Engine) UpdateAliases(ctx context.Context, actions []engine.AliasAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aliasCalls++

	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = fmt.Sprintf("%s %s->%s", a.Type, a.Index, a.Alias)
	}
	e.record("update_aliases [%s]", strings.Join(parts, ", "))

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := e.failAlias[e.aliasCalls]; ok {
		return err
	}

	next := make(map[string]map[string]struct{}, len(e.aliases))
	for alias, set := range e.aliases {
		next[alias] = make(map[string]struct{}, len(set))
		for name := range set {
			next[alias][name] = struct{}{}
		}
	}

	for _, a := range actions {
		switch a.Type {
		case engine.ActionAdd:
			if _, ok := e.indices[a.Index]; !ok {
				return engine.Rejected("update aliases", http.StatusNotFound,
					fmt.Sprintf("index_not_found_exception: no such index [%s]", a.Index))
			}
			if next[a.Alias] == nil {
				next[a.Alias] = make(map[string]struct{})
			}
			next[a.Alias][a.Index] = struct{}{}
		case engine.ActionRemove:
			p, err := engine.CompilePattern(a.Index)
			if err != nil {
				return docerrors.ValidationError("invalid alias action", err)
			}
			removed := 0
			for name := range next[a.Alias] {
				if p.Match(name) {
					delete(next[a.Alias], name)
					removed++
				}
			}
			if removed == 0 {
				return engine.Rejected("update aliases", http.StatusNotFound,
					fmt.Sprintf("aliases_not_found_exception: aliases [%s] missing", a.Alias))
			}
		default:
			return docerrors.ValidationError(fmt.Sprintf("unknown alias action %q", a.Type), nil)
		}
	}

	for alias, set := range next {
		if len(set) == 0 {
			delete(next, alias)
		}
	}
	e.aliases = next
	return nil
}

// ListIndices implements engine.Engine.
func (e *Engine) ListIndices(ctx context.Context, pattern string) ([]engine.IndexInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("list_indices %s", pattern)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := engine.CompilePattern(pattern)
	if err != nil {
		return nil, docerrors.ValidationError("invalid index pattern", err)
	}

	var infos []engine.IndexInfo
	for name, idx := range e.indices {
		if !p.Match(name) {
			continue
		}
		infos = append(infos, engine.IndexInfo{
			Name:     name,
			DocCount: int64(len(idx.docs)),
			Health:   "green",
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteIndex implements engine.Engine. Aliases bound to the index go with it.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("delete_index %s", name)

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := e.indices[name]; !ok {
		return engine.Rejected("delete index", http.StatusNotFound,
			fmt.Sprintf("index_not_found_exception: no such index [%s]", name))
	}
	delete(e.indices, name)
	for alias, set := range e.aliases {
		delete(set, name)
		if len(set) == 0 {
			delete(e.aliases, alias)
		}
	}
	return nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error { return nil }

func (e *Engine) record(format string, args ...any) {
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
}

func toMap(doc any) (map[string]any, error) {
	if m, ok := doc.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
