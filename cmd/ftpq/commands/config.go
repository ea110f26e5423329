package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ftpq-dev/ftpq/internal/cli/output"
	"github.com/ftpq-dev/ftpq/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the ftpq configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with the default settings, refusing to
overwrite an existing one.

Examples:
  # Write ~/.config/ftpq/config.yaml
  ftpq config init

  # Write somewhere else
  ftpq config init --config ./ftpq.yaml`,
	Args: cobra.NoArgs,
	// The file being written may not exist or parse yet, so skip the
	// root settings loader.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration the other commands would run with, after
merging the config file, FTPQ_* environment variables and flags. The
password is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.Init(flagConfig)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := settings.Redacted()

	rate := "unlimited"
	if cfg.RateLimit > 0 {
		rate = cfg.RateLimit.String()
	}

	output.PrintPairs(cmd.OutOrStdout(), [][2]string{
		{"host", cfg.Host},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"security", cfg.Security},
		{"timeout", cfg.Timeout.String()},
		{"active", strconv.FormatBool(cfg.Active)},
		{"insecure", strconv.FormatBool(cfg.Insecure)},
		{"rate limit", rate},
		{"compression", strconv.FormatBool(cfg.Compression)},
	})
	return nil
}
