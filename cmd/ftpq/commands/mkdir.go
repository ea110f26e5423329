package commands

import (
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir>...",
	Short: "Create remote directories",
	Long: `Create one or more directories on the server.

Examples:
  ftpq mkdir /incoming/2026
  ftpq mkdir drafts final`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMkdir,
}

func runMkdir(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	for _, dir := range args {
		if err := sess.MakeDir(cmd.Context(), dir); err != nil {
			return err
		}
	}
	return nil
}
