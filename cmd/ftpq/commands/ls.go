package commands

import (
	"github.com/spf13/cobra"

	"github.com/ftpq-dev/ftpq"
	"github.com/ftpq-dev/ftpq/internal/cli/output"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a remote directory",
	Long: `List the contents of a remote directory, or of the login directory
when no path is given.

Examples:
  # List the login directory
  ftpq ls --host ftp.example.com

  # List a subdirectory on the configured host
  ftpq ls /pub/releases`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	entries, err := sess.List(cmd.Context(), dir)
	if err != nil {
		return err
	}

	output.PrintTable(cmd.OutOrStdout(), entryTable(entries))
	return nil
}

// entryTable renders directory entries with humanized sizes.
type entryTable []*ftpq.Entry

func (entryTable) Headers() []string {
	return []string{"name", "type", "size", "modified"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		name := e.Name
		if e.Type == ftpq.EntryTypeSymlink && e.LinkTarget != "" {
			name += " -> " + e.LinkTarget
		}

		size := output.FormatSize(e.Size)
		if e.IsDir() {
			size = "-"
		}

		modified := ""
		if !e.ModTime.IsZero() {
			modified = ftpq.FormatEntryTime(e.ModTime)
		}

		rows = append(rows, []string{name, e.Type.String(), size, modified})
	}
	return rows
}
