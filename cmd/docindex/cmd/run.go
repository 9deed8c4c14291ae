package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/pipeline"
	"github.com/Aman-CERP/docindex/internal/ui"
)

type runFlags struct {
	root        string
	backend     string
	mode        string
	directories []string
	noTUI       bool
	noColor     bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"ingest"},
		Short:   "Rebuild the index and move the alias onto it",
		Long: `Run one ingestion:

  1. create a new index generation named <prefix>_<random suffix>
  2. walk the indexing directories beneath the repository root
  3. bulk load every markdown page into the new generation
  4. move the alias from the previous generation to the new one

The repository root is the enclosing git work tree unless --root is given.
Previous generations are kept; remove them with 'docindex gc'.

Cutover modes:
  two-step   remove the old binding, then add the new one (default)
  atomic     one alias request doing both`,
		Example: `  # Ingest using .docindex.yaml in the current directory
  docindex run

  # Load into a local bleve index with plain output
  docindex run --backend bleve --no-tui

  # Override the corpus
  docindex run --root ../docs-site --dir _docs --dir _guides`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.root, "root", "", "Corpus root (default: enclosing git work tree)")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Search engine: opensearch, bleve or memory")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "Cutover mode: two-step or atomic")
	cmd.Flags().StringSliceVar(&flags.directories, "dir", nil, "Indexing directory relative to the root (repeatable)")
	cmd.Flags().BoolVar(&flags.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colors")

	return cmd
}

// override layers the command line flags on the loaded configuration.
func (f runFlags) override(cfg *config.Config) {
	cfg.Engine.Backend = withOverride(f.backend, cfg.Engine.Backend)
	cfg.Cutover.Mode = withOverride(f.mode, cfg.Cutover.Mode)
	if len(f.directories) > 0 {
		cfg.IndexingDirectories = f.directories
	}
}

func runIngest(ctx context.Context, cmd *cobra.Command, flags runFlags) error {
	cfg, err := loadConfig(flags.override)
	if err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Root = flags.root

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(flags.noTUI),
		ui.WithNoColor(flags.noColor || ui.DetectNoColor()),
		ui.WithAlias(cfg.Index.Alias),
		ui.WithInterrupt(cancel)))

	// Logs would tear the TUI; they go to the log file only.
	console := cmd.ErrOrStderr()
	if _, ok := renderer.(*ui.TUIRenderer); ok {
		console = nil
	}
	if err := setupLogging(cfg.Logging.Level, cfg.Logging.File, console); err != nil {
		return err
	}
	slog.Debug("config_loaded", slog.Any("sources", cfg.Source))

	e, closeEngine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	options := []pipeline.Option{pipeline.WithRenderer(renderer)}
	l, err := openLedger(cfg)
	if err != nil {
		slog.Warn("ledger_unavailable", slog.String("path", cfg.LedgerPath()), slog.String("error", err.Error()))
	} else if l != nil {
		defer func() { _ = l.Close() }()
		options = append(options, pipeline.WithLedger(l))
	}

	if err := renderer.Start(ctx); err != nil {
		slog.Warn("renderer_start_failed", slog.String("error", err.Error()))
	}
	_, runErr := pipeline.New(e, opts, options...).Run(ctx)
	if err := renderer.Stop(); err != nil {
		slog.Warn("renderer_stop_failed", slog.String("error", err.Error()))
	}
	return runErr
}
