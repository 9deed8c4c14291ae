package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		root        string
		backendName string
		verbose     bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a run can succeed",
		Long: `Run the checks an ingestion depends on, without writing to the engine:

  - corpus root and indexing directories exist
  - the data directory is writable
  - disk space and file descriptors (bleve backend)
  - no other run holds the lock
  - the search engine is reachable
  - the alias resolves to exactly one generation (warning only)

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  docindex doctor
  docindex doctor --verbose
  docindex doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				c.Engine.Backend = withOverride(backendName, c.Engine.Backend)
			})
			if err != nil {
				return err
			}

			opts := []preflight.Option{
				preflight.WithRoot(root),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			}
			e, closeEngine, err := openEngine(cfg)
			if err != nil {
				slog.Warn("engine_open_failed", slog.String("error", err.Error()))
			} else {
				defer closeEngine()
				opts = append(opts, preflight.WithEngine(e))
			}

			checker := preflight.New(cfg, opts...)
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return docerrors.ValidationError("system check failed", nil).
					WithSuggestion("fix the failed checks above and run 'docindex doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Corpus root (default: enclosing git work tree)")
	cmd.Flags().StringVar(&backendName, "backend", "", "Search engine: opensearch, bleve or memory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
