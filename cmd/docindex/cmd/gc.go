package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/gc"
	"github.com/Aman-CERP/docindex/internal/lock"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/ui"
)

func newGCCmd() *cobra.Command {
	var (
		backendName string
		del         bool
	)

	cmd := &cobra.Command{
		Use:   "gc [index...]",
		Short: "List or delete generations the alias does not use",
		Long: `List the generations matching the prefix that the alias does not resolve
to. With --delete they are removed; name indices to remove only those.

An index the alias currently resolves to is never deleted. Deleting takes
the run lock, so a generation being loaded by a concurrent run is safe.`,
		Example: `  # List orphans
  docindex gc

  # Delete all orphans
  docindex gc --delete

  # Delete one
  docindex gc --delete documentation_index_ab12cd34`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				c.Engine.Backend = withOverride(backendName, c.Engine.Backend)
			})
			if err != nil {
				return err
			}
			if len(args) > 0 && !del {
				return docerrors.ValidationError("naming indices requires --delete", nil)
			}
			return runGC(cmd, cfg, del, args)
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "", "Search engine: opensearch, bleve or memory")
	cmd.Flags().BoolVar(&del, "delete", false, "Delete the orphaned generations")

	return cmd
}

func runGC(cmd *cobra.Command, cfg *config.Config, del bool, names []string) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	e, closeEngine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	collector := gc.NewCollector(e, cfg.Index.Alias, cfg.Index.Prefix)

	if len(names) == 0 {
		orphans, err := collector.Orphans(ctx)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			out.Successf("No orphaned generations for alias %s", cfg.Index.Alias)
			return nil
		}

		rows := make([][]string, 0, len(orphans))
		for _, o := range orphans {
			names = append(names, o.Name)
			rows = append(rows, []string{o.Name, strconv.FormatInt(o.DocCount, 10), ui.FormatBytes(o.SizeBytes), o.Health})
		}
		out.Table([]string{"index", "docs", "size", "health"}, rows)
		if !del {
			out.Newline()
			out.Statusf("", "%d orphaned generation(s); run with --delete to remove them", len(orphans))
			return nil
		}
		out.Newline()
	}

	l := lock.New(cfg.Engine.DataDir)
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	outcomes, err := collector.Delete(ctx, names)
	failed := 0
	for _, o := range outcomes {
		if o.Deleted() {
			out.Successf("Deleted %s", o.Index)
			continue
		}
		failed++
		out.Errorf("%s: %v", o.Index, o.Err)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return docerrors.New(docerrors.ErrCodeEngineRejected,
			fmt.Sprintf("%d of %d deletions failed", failed, len(names)), nil)
	}
	return nil
}
