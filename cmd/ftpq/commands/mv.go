package commands

import (
	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Rename or move a remote file",
	Long: `Rename a remote file or directory, moving it when the target names a
different directory.

Examples:
  ftpq mv report-draft.pdf report.pdf
  ftpq mv /incoming/report.pdf /archive/2026/report.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

func runMv(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	return sess.Rename(cmd.Context(), args[0], args[1])
}
