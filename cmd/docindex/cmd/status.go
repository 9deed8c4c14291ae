package cmd

import (
	"context"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		backendName string
		jsonOutput  bool
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the alias points and which generations exist",
		Long: `Show the alias binding, every generation matching the prefix with its
document count and size, and the most recent run from the ledger.

Generations the alias does not resolve to are orphans: left by a failed
run or replaced by a later one.`,
		Example: `  docindex status
  docindex status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				c.Engine.Backend = withOverride(backendName, c.Engine.Backend)
			})
			if err != nil {
				return err
			}

			info, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "", "Search engine: opensearch, bleve or memory")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		Alias:   cfg.Index.Alias,
		Backend: cfg.Engine.Backend,
		Prefix:  cfg.Index.Prefix + "_",
	}

	e, closeEngine, err := openEngine(cfg)
	if err != nil {
		return info, err
	}
	defer closeEngine()

	bound, err := e.GetAlias(ctx, cfg.Index.Alias)
	if err != nil {
		return info, err
	}
	info.Bound = bound

	indices, err := e.ListIndices(ctx, cfg.Index.Prefix+"_*")
	if err != nil {
		return info, err
	}
	info.Generations = generations(indices, bound)

	l, err := openLedger(cfg)
	if err != nil {
		slog.Warn("ledger_unavailable", slog.String("error", err.Error()))
		return info, nil
	}
	if l == nil {
		return info, nil
	}
	defer func() { _ = l.Close() }()

	runs, err := l.List(ctx, 1)
	if err != nil {
		slog.Warn("ledger_read_failed", slog.String("error", err.Error()))
		return info, nil
	}
	if len(runs) > 0 {
		last := runs[0]
		info.LastRun = &ui.RunSummary{
			ID:        last.ID,
			Index:     last.Index,
			State:     last.State,
			StartedAt: last.StartedAt,
			Records:   last.Records,
			Failed:    last.Failed,
			Error:     last.Error,
		}
	}
	return info, nil
}

func generations(indices []engine.IndexInfo, bound []string) []ui.IndexStatus {
	out := make([]ui.IndexStatus, 0, len(indices))
	for _, idx := range indices {
		out = append(out, ui.IndexStatus{
			Name:      idx.Name,
			DocCount:  idx.DocCount,
			SizeBytes: idx.SizeBytes,
			Health:    idx.Health,
			Bound:     slices.Contains(bound, idx.Name),
		})
	}
	return out
}
