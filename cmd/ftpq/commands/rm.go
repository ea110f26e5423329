package commands

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <file>...",
	Short: "Delete remote files",
	Long: `Delete one or more files from the server.

Examples:
  ftpq rm /incoming/stale.tmp
  ftpq rm a.log b.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	for _, p := range args {
		if err := sess.Remove(cmd.Context(), p); err != nil {
			return err
		}
	}
	return nil
}
