package commands

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/ftpq-dev/ftpq/internal/cli/output"
)

var getCmd = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a remote file",
	Long: `Download a remote file, by default into the current directory under
its remote name. Progress is reported on stderr.

Examples:
  # Download into the current directory
  ftpq get /pub/releases/ftpq-1.0.tar.gz

  # Download under a different local name
  ftpq get /pub/releases/ftpq-1.0.tar.gz /tmp/latest.tar.gz`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	remote := args[0]
	local := path.Base(remote)
	if len(args) == 2 {
		local = args[1]
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	if err := sess.Download(cmd.Context(), remote, local, transferProgress(remote)); err != nil {
		return err
	}

	info, err := os.Stat(local)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", local, output.FormatSize(info.Size()))
	return nil
}
