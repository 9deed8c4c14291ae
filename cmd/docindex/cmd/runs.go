package cmd

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/ledger"
	"github.com/Aman-CERP/docindex/internal/output"
)

func newRunsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show the run history",
		Long: `Show past ingestion runs from the ledger, newest first: the state each
reached, the generation it created, how many records it wrote and the alias
bindings before and after cutover.

Pass a run ID for the full entry.`,
		Example: `  docindex runs
  docindex runs --limit 5 --json
  docindex runs 0b7c4e2a-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, err := openLedger(cfg)
			if err != nil {
				return err
			}
			if l == nil {
				return docerrors.ConfigError("the run ledger is disabled", nil).
					WithSuggestion("set ledger.enabled: true in the config file")
			}
			defer func() { _ = l.Close() }()

			var runs []*ledger.Run
			if len(args) == 1 {
				run, err := l.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				runs = []*ledger.Run{run}
			} else {
				runs, err = l.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(output.New(cmd.OutOrStdout()), runs, len(args) == 1)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", ledger.DefaultListLimit, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printRuns(out *output.Writer, runs []*ledger.Run, detail bool) {
	if len(runs) == 0 {
		out.Status("", "No runs recorded")
		return
	}

	if detail {
		run := runs[0]
		out.Table([]string{"field", "value"}, [][]string{
			{"id", run.ID},
			{"state", run.State},
			{"alias", run.Alias},
			{"index", run.Index},
			{"started", run.StartedAt.Format(time.RFC3339)},
			{"duration", runDuration(run)},
			{"files", strconv.Itoa(run.Files)},
			{"records", strconv.Itoa(run.Records)},
			{"rejected", strconv.Itoa(run.Failed)},
			{"before", joinNames(run.BindingsBefore)},
			{"after", joinNames(run.BindingsAfter)},
			{"error", run.Error},
		})
		return
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.State,
			run.Index,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runDuration(run),
			strconv.Itoa(run.Records),
			strconv.Itoa(run.Failed),
		})
	}
	out.Table([]string{"id", "state", "index", "started", "duration", "records", "rejected"}, rows)
}

func runDuration(run *ledger.Run) string {
	if !run.Finished() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
