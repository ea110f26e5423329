package commands

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <local> [remote]",
	Short: "Upload a local file",
	Long: `Upload a local file, by default into the remote working directory
under its local name. Progress is reported on stderr.

Examples:
  # Upload into the remote working directory
  ftpq put build/ftpq-1.0.tar.gz

  # Upload under a different remote name
  ftpq put build/ftpq-1.0.tar.gz /incoming/latest.tar.gz`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	local := args[0]
	remote := path.Base(filepath.ToSlash(local))
	if len(args) == 2 {
		remote = args[1]
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	if err := sess.Upload(cmd.Context(), local, remote, transferProgress(local)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", local, remote)
	return nil
}
