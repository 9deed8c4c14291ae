package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/configs"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect the effective docindex configuration.

Configuration precedence (lowest to highest):
  1. Defaults
  2. User config (~/.config/docindex/config.yaml)
  3. Project config (.docindex.yaml or config.yml)
  4. .env in the working directory
  5. Environment variables (SEARCH_*, DOCINDEX_*)
  6. Command line flags`,
		Example: `  # Write .docindex.yaml with every setting and its default
  docindex config init

  # Show effective configuration, password redacted
  docindex config show

  # Print config file paths
  docindex config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Status("", "Effective configuration")
			for _, src := range cfg.Source {
				out.Statusf("", "  from %s", src)
			}
			out.Code(string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.Table([]string{"scope", "path"}, [][]string{
				{"user", config.GetUserConfigPath()},
				{"project", joinNames(config.ProjectConfigFiles)},
			})
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .docindex.yaml in the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := config.ProjectConfigFiles[0]

			if _, err := os.Stat(path); err == nil && !force {
				out.Warningf("%s already exists", path)
				out.Status("", "Use --force to overwrite it")
				return nil
			}
			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			out.Successf("Created %s", path)
			out.Newline()
			out.Status("", "Next steps:")
			out.Status("", "  1. List the documentation directories under indexing_directories")
			out.Status("", "  2. Put SEARCH_ENDPOINT, SEARCH_USER and SEARCH_PASS in .env")
			out.Status("", "  3. Run 'docindex doctor' to verify")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
