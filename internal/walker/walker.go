// Package walker enumerates the documentation files of a corpus.
//
// Files are streamed over a channel as they are discovered. The stream is
// finite, cannot be restarted, and follows filepath.WalkDir order within
// each configured subdirectory (lexical on every platform Go supports).
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gobwas/glob"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DefaultExtensions are the markdown-family extensions eligible for indexing.
var DefaultExtensions = []string{".md", ".markdown"}

// Options configures a Walker.
type Options struct {
	// Extensions are the eligible file suffixes. Defaults to DefaultExtensions.
	Extensions []string
	// Exclude holds glob patterns matched against root-relative slash paths.
	// A matching directory is pruned; "**" crosses separators.
	Exclude []string
	// Buffer is the channel capacity (default 64).
	Buffer int
}

// Result is one value of the walk stream: an eligible file or a fatal error.
type Result struct {
	// Path is the absolute file path.
	Path string
	// RelPath is Path relative to the walk root, slash separated.
	RelPath string
	Err     error
}

// Stats counts what a walk discovered.
type Stats struct {
	Eligible   int
	Ineligible int
	Excluded   int
}

// Walker lists eligible documentation files.
type Walker struct {
	extensions []string
	excludes   []glob.Glob
	buffer     int

	eligible   atomic.Int64
	ineligible atomic.Int64
	excluded   atomic.Int64
}

// New compiles the exclude patterns and returns a Walker.
func New(opts Options) (*Walker, error) {
	w := &Walker{
		extensions: opts.Extensions,
		buffer:     opts.Buffer,
	}
	if len(w.extensions) == 0 {
		w.extensions = DefaultExtensions
	}
	if w.buffer <= 0 {
		w.buffer = 64
	}

	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, docerrors.New(docerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid exclude pattern %q", pattern), err)
		}
		w.excludes = append(w.excludes, g)
	}

	return w, nil
}

// Eligible reports whether a file name qualifies for indexing: it carries a
// configured extension and does not start with an underscore.
func (w *Walker) Eligible(name string) bool {
	if strings.HasPrefix(name, "_") {
		return false
	}
	for _, ext := range w.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Walk resolves root and starts streaming eligible files found beneath each
// root/subdir. It returns the absolute root (the base path records are made
// relative to) and the result channel, which is closed when the walk ends.
// A missing subdirectory is reported as an error result. Each file is yielded
// once even when subdirectories repeat or nest.
func (w *Walker) Walk(ctx context.Context, root string, subdirs []string) (string, <-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return "", nil, docerrors.New(docerrors.ErrCodeFileNotFound,
			fmt.Sprintf("corpus root %s is not accessible", absRoot), err)
	}
	if !info.IsDir() {
		return "", nil, docerrors.New(docerrors.ErrCodeInvalidInput,
			fmt.Sprintf("corpus root %s is not a directory", absRoot), nil)
	}

	results := make(chan Result, w.buffer)

	go func() {
		defer close(results)
		seen := make(map[string]struct{})
		for _, sub := range subdirs {
			if err := w.walkSubdir(ctx, absRoot, sub, seen, results); err != nil {
				if ctx.Err() == nil {
					send(ctx, results, Result{Err: err})
				}
				return
			}
		}
	}()

	return absRoot, results, nil
}

// Stats returns the counters accumulated so far. Read it after the channel
// is drained for final numbers.
func (w *Walker) Stats() Stats {
	return Stats{
		Eligible:   int(w.eligible.Load()),
		Ineligible: int(w.ineligible.Load()),
		Excluded:   int(w.excluded.Load()),
	}
}

// walkSubdir streams the eligible files under absRoot/sub. Paths already in
// seen, reached through an earlier overlapping subdirectory, are skipped.
func (w *Walker) walkSubdir(ctx context.Context, absRoot, sub string, seen map[string]struct{}, results chan<- Result) error {
	dir := filepath.Join(absRoot, sub)
	info, err := os.Stat(dir)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeFileNotFound,
			fmt.Sprintf("indexing directory %s not found", sub), err).
			WithDetail("path", dir)
	}
	if !info.IsDir() {
		return docerrors.New(docerrors.ErrCodeInvalidInput,
			fmt.Sprintf("indexing directory %s is not a directory", sub), nil)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			slog.Warn("walk_entry_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != dir && w.isExcluded(rel) {
				w.excluded.Add(1)
				return filepath.SkipDir
			}
			return nil
		}

		if !isFile(path, d) {
			return nil
		}

		if w.isExcluded(rel) {
			w.excluded.Add(1)
			return nil
		}

		if !w.Eligible(d.Name()) {
			w.ineligible.Add(1)
			slog.Debug("walk_file_ineligible", slog.String("path", rel))
			return nil
		}

		if _, dup := seen[path]; dup {
			return nil
		}
		seen[path] = struct{}{}

		w.eligible.Add(1)
		if !send(ctx, results, Result{Path: path, RelPath: rel}) {
			return ctx.Err()
		}
		return nil
	})
}

func (w *Walker) isExcluded(rel string) bool {
	for _, g := range w.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// isFile accepts regular files and symlinks that resolve to one.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func send(ctx context.Context, results chan<- Result, r Result) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
