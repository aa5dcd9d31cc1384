package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mill3/1ou2cocktails-algolia-sync/configs"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the algoliasync configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/algoliasync/config.yaml)
  3. Project config (.algoliasync.yaml in the --config directory)
  4. Environment variables (ALGOLIA_*, ALGOLIASYNC_*)`,
		Example: `  # Create .algoliasync.yaml from the template
  algoliasync config init

  # Show effective configuration (merged from all sources)
  algoliasync config show

  # Print the config file paths
  algoliasync config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .algoliasync.yaml",
		Long: `Create .algoliasync.yaml in the --config directory from a commented
template holding the default values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources.
The admin API key is never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.KeyValues(map[string]string{
				"user":    config.GetUserConfigPath(),
				"project": config.ProjectConfigPath(configDir),
			})
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.ProjectConfigPath(configDir)

	if fileExists(path) && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it with the template")
		return nil
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Export ALGOLIA_APPLICATION_ID and ALGOLIA_ADMIN_API_KEY")
	out.Status("", "  2. Import content with 'algoliasync content import'")
	out.Status("", "  3. Run 'algoliasync reindex <type>' for each content type")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	switch source {
	case "merged":
		var err error
		if cfg, err = loadConfig(); err != nil {
			return err
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown source %q (valid: merged, defaults)", source)
	}

	shown := *cfg
	if shown.Index.AdminAPIKey != "" {
		shown.Index.AdminAPIKey = "********"
	}

	if jsonOutput {
		return out.JSON(shown)
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
