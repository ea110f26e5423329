package commands

import (
	"github.com/spf13/cobra"
)

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <dir>...",
	Short: "Remove remote directories",
	Long: `Remove one or more empty directories from the server.

Examples:
  ftpq rmdir /incoming/2025
  ftpq rmdir drafts scratch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRmdir,
}

func runRmdir(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	for _, dir := range args {
		if err := sess.RemoveDir(cmd.Context(), dir); err != nil {
			return err
		}
	}
	return nil
}
