// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/backend"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/ledger"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/profiling"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// Persistent flags
var (
	configPath string
	debugMode  bool
	profile    profiling.Options
)

var (
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Rebuild a documentation search index behind a stable alias",
		Long: `docindex walks the documentation directories of a repository, writes every
markdown page into a freshly created index generation and then moves the
read alias onto it. Readers never see a partially loaded index.

A failed run leaves the alias where it was. The generation it created stays
behind as an orphan; list and remove those with 'docindex gc'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .docindex.yaml or config.yml in the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docindex/logs/")
	cmd.PersistentFlags().StringVar(&profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return finish()
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure in CLI form.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if ferr := finish(); err == nil {
		err = ferr
	}
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), docerrors.FormatForCLI(err))
	}
	return err
}

func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if err := setupLogging("warn", false, cmd.ErrOrStderr()); err != nil {
		return err
	}

	if profile.Enabled() {
		s, err := profiling.Start(profile)
		if err != nil {
			return err
		}
		profileSession = s
	}
	return nil
}

// finish stops profiling and closes the log file. PersistentPostRunE does
// not run when a command fails, so Execute calls it too.
func finish() error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// setupLogging installs the default JSON logger. A nil console keeps logs
// off the terminal; --debug forces debug level and the log file.
func setupLogging(level string, toFile bool, console io.Writer) error {
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Console = console
	if debugMode {
		cfg.Level = "debug"
		toFile = true
	}
	if toFile {
		cfg.FilePath = logging.DefaultLogPath()
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if loggingCleanup != nil {
		loggingCleanup()
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Debug("debug_logging_enabled", slog.String("log_file", cfg.FilePath))
	}
	return nil
}

// loadConfig loads the configuration for the working directory, applying
// command line overrides last.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(".", configPath, overrides...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEngine connects to the configured backend.
func openEngine(cfg *config.Config) (engine.Engine, func(), error) {
	e, err := backend.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return e, func() {
		if err := e.Close(); err != nil {
			slog.Warn("engine_close_failed", slog.String("error", err.Error()))
		}
	}, nil
}

// openLedger opens the run ledger, or returns nil when it is disabled.
func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	if !cfg.LedgerEnabled() {
		return nil, nil
	}
	return ledger.Open(cfg.LedgerPath())
}

// withOverride returns value when set, fallback otherwise.
func withOverride(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
