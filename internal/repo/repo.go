// Package repo locates the corpus root: the work tree of the git repository
// enclosing a starting directory.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// FindRoot returns the absolute work-tree root of the repository containing
// start, searching parent directories. The result has no trailing separator.
func FindRoot(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", docerrors.New(docerrors.ErrCodeRootNotFound, "failed to determine working directory", err)
		}
		start = wd
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeRootNotFound,
			fmt.Sprintf("failed to resolve %s", start), err)
	}

	r, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		e := docerrors.New(docerrors.ErrCodeRootNotFound,
			fmt.Sprintf("no git repository found at or above %s", abs), err)
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			e.WithSuggestion("run inside the documentation repository or pass --root")
		}
		return "", e
	}

	wt, err := r.Worktree()
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeRootNotFound,
			fmt.Sprintf("repository at %s has no work tree", abs), err)
	}
	return filepath.Clean(wt.Filesystem.Root()), nil
}

// Resolve returns override when set (made absolute), otherwise FindRoot(start).
func Resolve(override, start string) (string, error) {
	if override == "" {
		return FindRoot(start)
	}
	abs, err := filepath.Abs(override)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeRootNotFound,
			fmt.Sprintf("failed to resolve %s", override), err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", docerrors.New(docerrors.ErrCodeRootNotFound,
			fmt.Sprintf("corpus root %s is not a directory", abs), err)
	}
	return filepath.Clean(abs), nil
}
