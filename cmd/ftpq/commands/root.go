// Package commands implements the ftpq command tree.
package commands

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftpq-dev/ftpq/internal/config"
	"github.com/ftpq-dev/ftpq/internal/logging"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// settings and logger hold the merged configuration and the logger for
// the command being run, populated by the root PersistentPreRunE.
var (
	settings *config.Config
	logger   = zap.NewNop()
)

var (
	flagConfig    string
	flagHost      string
	flagUser      string
	flagPassword  string
	flagSecurity  string
	flagTimeout   time.Duration
	flagActive    bool
	flagInsecure  bool
	flagRateLimit string
	flagCompress  bool
	flagVerbose   bool
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "ftpq",
	Short: "FTP client with queued, cancellable transfers",
	Long: `ftpq is a command-line FTP client supporting plain FTP, implicit and
explicit TLS, passive and active data connections, MODE Z compression
and bandwidth limiting.

Connection settings come from flags, FTPQ_* environment variables and
the configuration file, in that order of precedence.

Use "ftpq [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.config/ftpq/config.yaml)")
	pf.StringVarP(&flagHost, "host", "H", "", "Server address, host or host:port")
	pf.StringVarP(&flagUser, "user", "u", "", "Login name (empty logs in anonymously)")
	pf.StringVarP(&flagPassword, "password", "p", "", "Password (prompted for when user is set)")
	pf.StringVar(&flagSecurity, "security", "", "Connection mode (ftp|ftps|ftpes)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Dial and control-channel timeout")
	pf.BoolVar(&flagActive, "active", false, "Use active (PORT/EPRT) data connections")
	pf.BoolVar(&flagInsecure, "insecure", false, "Skip TLS certificate verification")
	pf.StringVar(&flagRateLimit, "rate-limit", "", "Transfer bandwidth cap, e.g. 500KB")
	pf.BoolVar(&flagCompress, "compress", false, "Request MODE Z compressed transfers")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings merges the config file, environment variables and
// command-line flags into the settings the subcommands run with.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = flagHost
	}
	if flags.Changed("user") {
		cfg.User = flagUser
	}
	if flags.Changed("password") {
		cfg.Password = flagPassword
	}
	if flags.Changed("security") {
		cfg.Security = flagSecurity
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("active") {
		cfg.Active = flagActive
	}
	if flags.Changed("insecure") {
		cfg.Insecure = flagInsecure
	}
	if flags.Changed("compress") {
		cfg.Compression = flagCompress
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if flags.Changed("rate-limit") {
		limit, err := config.ParseByteSize(flagRateLimit)
		if err != nil {
			return err
		}
		cfg.RateLimit = limit
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	settings = cfg
	logger = logging.New(cfg.Verbose)
	return nil
}
