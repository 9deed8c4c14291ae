// Package gc finds and deletes orphaned index generations: indices created
// by a run that never reached cutover, or replaced by a later one.
package gc

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Collector lists and deletes generations that the alias does not reference.
type Collector struct {
	engine engine.Engine
	alias  string
	prefix string
}

// NewCollector returns a Collector for generations named prefix_*.
func NewCollector(e engine.Engine, alias, prefix string) *Collector {
	return &Collector{engine: e, alias: alias, prefix: prefix}
}

// Outcome is the result of deleting one index.
type Outcome struct {
	Index string
	Err   error
}

// Deleted reports whether the index was removed.
func (o Outcome) Deleted() bool { return o.Err == nil }

// Orphans returns the generations not bound to the alias, sorted by name.
func (c *Collector) Orphans(ctx context.Context) ([]engine.IndexInfo, error) {
	all, err := c.engine.ListIndices(ctx, c.pattern())
	if err != nil {
		return nil, err
	}
	bound, err := c.engine.GetAlias(ctx, c.alias)
	if err != nil {
		return nil, err
	}

	orphans := make([]engine.IndexInfo, 0, len(all))
	for _, info := range all {
		if !slices.Contains(bound, info.Name) {
			orphans = append(orphans, info)
		}
	}
	return orphans, nil
}

func (c *Collector) pattern() string { return c.prefix + "_*" }

// Delete removes the named indices one by one and reports each outcome.
// Names outside prefix_* and indices the alias currently resolves to are
// refused. Bindings are read once, before the first deletion.
func (c *Collector) Delete(ctx context.Context, names []string) ([]Outcome, error) {
	generation, err := engine.CompilePattern(c.pattern())
	if err != nil {
		return nil, docerrors.ConfigError("invalid index prefix", err)
	}
	bound, err := c.engine.GetAlias(ctx, c.alias)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if !generation.Match(name) {
			outcomes = append(outcomes, Outcome{
				Index: name,
				Err: docerrors.ValidationError(
					fmt.Sprintf("refusing to delete %s: not a generation of %s", name, generation), nil),
			})
			continue
		}
		if slices.Contains(bound, name) {
			outcomes = append(outcomes, Outcome{
				Index: name,
				Err: docerrors.ValidationError(
					fmt.Sprintf("refusing to delete %s: alias %s resolves to it", name, c.alias), nil),
			})
			continue
		}

		err := c.engine.DeleteIndex(ctx, name)
		outcomes = append(outcomes, Outcome{Index: name, Err: err})
		if err != nil {
			slog.Warn("orphan_delete_failed", slog.String("index", name), slog.String("error", err.Error()))
			continue
		}
		slog.Info("orphan_deleted", slog.String("index", name))
	}
	return outcomes, nil
}
