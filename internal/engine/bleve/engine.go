// Package bleve is a local search engine backend. Each index generation is
// an on-disk bleve index under <data_dir>/indices/<name>; the index catalog
// and alias bindings live in a SQLite database next to them so that alias
// updates are transactional.
package bleve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
)

const (
	// DefaultOpenHandles bounds how many generations stay open at once.
	DefaultOpenHandles = 4

	catalogFile = "catalog.db"
	indicesDir  = "indices"
)

// Options configures the local engine.
type Options struct {
	// DataDir holds the catalog and the index directories.
	DataDir string
	// OpenHandles is the handle cache size (default DefaultOpenHandles).
	OpenHandles int
}

// Engine is an engine.Engine over local bleve indices.
type Engine struct {
	dir     string
	db      *sql.DB
	handles *lru.Cache[string, bleve.Index]

	// mu serialises writers; bleve indices are safe for concurrent batches
	// but catalog changes and handle eviction are not.
	mu sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)

// Open opens (or initialises) the engine under opts.DataDir.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, docerrors.ConfigError("bleve backend requires engine.data_dir", nil)
	}
	if err := os.MkdirAll(filepath.Join(opts.DataDir, indicesDir), 0o755); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to create data directory %s", opts.DataDir), err)
	}

	db, err := openCatalog(filepath.Join(opts.DataDir, catalogFile))
	if err != nil {
		return nil, err
	}

	size := opts.OpenHandles
	if size <= 0 {
		size = DefaultOpenHandles
	}
	handles, err := lru.NewWithEvict(size, func(name string, idx bleve.Index) {
		if err := idx.Close(); err != nil {
			slog.Warn("bleve_close_failed", slog.String("index", name), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		_ = db.Close()
		return nil, docerrors.InternalError("failed to create handle cache", err)
	}

	return &Engine{dir: opts.DataDir, db: db, handles: handles}, nil
}

func openCatalog(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead, "failed to open index catalog", err)
	}
	// One connection: SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS indices (
			name TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			alias TEXT NOT NULL,
			index_name TEXT NOT NULL,
			PRIMARY KEY (alias, index_name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, docerrors.New(docerrors.ErrCodeFileRead, "failed to initialise index catalog", err)
		}
	}
	return db, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "bleve" }

// CreateIndex implements engine.Engine.
func (e *Engine) CreateIndex(ctx context.Context, name string, def *schema.Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	exists, err := e.exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return engine.Rejected("create index", http.StatusBadRequest,
			fmt.Sprintf("resource_already_exists_exception: index [%s] already exists", name))
	}

	m, err := buildMapping(def)
	if err != nil {
		return err
	}
	idx, err := bleve.New(e.indexPath(name), m)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeProvisionFailed,
			fmt.Sprintf("failed to create bleve index %s", name), err)
	}

	if _, err := e.db.ExecContext(ctx,
		"INSERT INTO indices (name, created_at) VALUES (?, ?)", name, time.Now().Unix()); err != nil {
		_ = idx.Close()
		_ = os.RemoveAll(e.indexPath(name))
		return docerrors.New(docerrors.ErrCodeProvisionFailed, "failed to record index in catalog", err)
	}
	e.handles.Add(name, idx)
	return nil
}

// Bulk implements engine.Engine. Each document gets a generated ID.
func (e *Engine) Bulk(ctx context.Context, name string, docs []any) (*engine.BulkResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	idx, err := e.handle(ctx, name)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp := &engine.BulkResponse{Items: make([]engine.BulkItem, 0, len(docs))}
	batch := idx.NewBatch()
	written := make([]int, 0, len(docs))
	for _, doc := range docs {
		body, err := toMap(doc)
		if err == nil {
			id := uuid.NewString()
			if err = batch.Index(id, body); err == nil {
				written = append(written, len(resp.Items))
				resp.Items = append(resp.Items, engine.BulkItem{Index: name, ID: id, Status: http.StatusCreated})
				continue
			}
		}
		resp.Errors = true
		resp.Items = append(resp.Items, engine.BulkItem{
			Index: name, Status: http.StatusBadRequest,
			ErrorType: "mapper_parsing_exception", Reason: err.Error(),
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, engine.Classify("bulk", err, docerrors.ErrCodeBulkFailed)
	}
	if len(written) > 0 {
		if err := idx.Batch(batch); err != nil {
			return nil, docerrors.New(docerrors.ErrCodeBulkFailed,
				fmt.Sprintf("failed to write batch to %s", name), err)
		}
	}
	resp.Took = time.Since(start).Milliseconds()
	return resp, nil
}

// GetAlias implements engine.Engine.
func (e *Engine) GetAlias(ctx context.Context, alias string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT index_name FROM aliases WHERE alias = ? ORDER BY index_name", alias)
	if err != nil {
		return nil, engine.Classify("get alias", err, docerrors.ErrCodeEngineRejected)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, docerrors.InternalError("failed to read alias binding", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdateAliases implements engine.Engine. The actions run in one catalog
// transaction.
func (e *Engine) UpdateAliases(ctx context.Context, actions []engine.AliasAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Classify("update aliases", err, docerrors.ErrCodeCutoverFailed)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range actions {
		switch a.Type {
		case engine.ActionAdd:
			if err := addAlias(ctx, tx, a); err != nil {
				return err
			}
		case engine.ActionRemove:
			if err := removeAlias(ctx, tx, a); err != nil {
				return err
			}
		default:
			return docerrors.ValidationError(fmt.Sprintf("unknown alias action %q", a.Type), nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return docerrors.New(docerrors.ErrCodeCutoverFailed, "failed to commit alias update", err)
	}
	return nil
}

func addAlias(ctx context.Context, tx *sql.Tx, a engine.AliasAction) error {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM indices WHERE name = ?", a.Index).Scan(&n); err != nil {
		return docerrors.InternalError("failed to query catalog", err)
	}
	if n == 0 {
		return engine.Rejected("update aliases", http.StatusNotFound,
			fmt.Sprintf("index_not_found_exception: no such index [%s]", a.Index))
	}
	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO aliases (alias, index_name) VALUES (?, ?)", a.Alias, a.Index)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeCutoverFailed, "failed to bind alias", err)
	}
	return nil
}

func removeAlias(ctx context.Context, tx *sql.Tx, a engine.AliasAction) error {
	p, err := engine.CompilePattern(a.Index)
	if err != nil {
		return docerrors.ValidationError("invalid alias action", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT index_name FROM aliases WHERE alias = ?", a.Alias)
	if err != nil {
		return docerrors.InternalError("failed to query aliases", err)
	}
	var matched []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return docerrors.InternalError("failed to read alias binding", err)
		}
		if p.Match(name) {
			matched = append(matched, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return docerrors.InternalError("failed to read aliases", err)
	}

	if len(matched) == 0 {
		return engine.Rejected("update aliases", http.StatusNotFound,
			fmt.Sprintf("aliases_not_found_exception: aliases [%s] missing", a.Alias))
	}
	for _, name := range matched {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM aliases WHERE alias = ? AND index_name = ?", a.Alias, name); err != nil {
			return docerrors.New(docerrors.ErrCodeCutoverFailed, "failed to unbind alias", err)
		}
	}
	return nil
}

// ListIndices implements engine.Engine.
func (e *Engine) ListIndices(ctx context.Context, pattern string) ([]engine.IndexInfo, error) {
	p, err := engine.CompilePattern(pattern)
	if err != nil {
		return nil, docerrors.ValidationError("invalid index pattern", err)
	}

	names, err := e.catalogNames(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var infos []engine.IndexInfo
	for _, name := range names {
		if !p.Match(name) {
			continue
		}
		info := engine.IndexInfo{Name: name, Health: "green"}
		idx, err := e.handle(ctx, name)
		if err != nil {
			info.Health = "red"
		} else if count, err := idx.DocCount(); err == nil {
			info.DocCount = int64(count)
		}
		info.SizeBytes = dirSize(e.indexPath(name))
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteIndex implements engine.Engine. Alias bindings go with the index.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return engine.Rejected("delete index", http.StatusNotFound,
			fmt.Sprintf("index_not_found_exception: no such index [%s]", name))
	}

	// Remove closes the handle through the eviction callback.
	e.handles.Remove(name)
	for _, stmt := range []string{
		"DELETE FROM aliases WHERE index_name = ?",
		"DELETE FROM indices WHERE name = ?",
	} {
		if _, err := e.db.ExecContext(ctx, stmt, name); err != nil {
			return docerrors.InternalError("failed to remove index from catalog", err)
		}
	}
	if err := os.RemoveAll(e.indexPath(name)); err != nil {
		return docerrors.New(docerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to remove index directory for %s", name), err)
	}
	return nil
}

// DocCount returns the number of documents in name.
func (e *Engine) DocCount(ctx context.Context, name string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.handle(ctx, name)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index and the catalog.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handles.Purge()
	return e.db.Close()
}

// handle returns an open index, opening it if it is not cached. Callers hold mu.
func (e *Engine) handle(ctx context.Context, name string) (bleve.Index, error) {
	if idx, ok := e.handles.Get(name); ok {
		return idx, nil
	}
	exists, err := e.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, engine.Rejected("open index", http.StatusNotFound,
			fmt.Sprintf("index_not_found_exception: no such index [%s]", name))
	}
	idx, err := bleve.Open(e.indexPath(name))
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to open bleve index %s", name), err)
	}
	e.handles.Add(name, idx)
	return idx, nil
}

func (e *Engine) exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indices WHERE name = ?", name).Scan(&n)
	if err != nil {
		return false, docerrors.InternalError("failed to query catalog", err)
	}
	return n > 0, nil
}

func (e *Engine) catalogNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT name FROM indices ORDER BY name")
	if err != nil {
		return nil, docerrors.InternalError("failed to list catalog", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, docerrors.InternalError("failed to read catalog", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (e *Engine) indexPath(name string) string {
	return filepath.Join(e.dir, indicesDir, name)
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
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
