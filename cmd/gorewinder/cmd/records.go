package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/tracker"
)

var (
	recordsRootPID int
	recordsDir     string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List tracker records of a root process",
	Long: `Records lists the tracker record files written under a root process
and the tables each one holds. It only reads the files.

The record directory defaults to $GOREWINDER_TRACKING_DIR, then to the
system temp dir.

Example:
  gorewinder records --root-pid 4242
  gorewinder records --root-pid 4242 --dir /tmp/rewinder`,
	RunE: runRecords,
}

func init() {
	recordsCmd.Flags().IntVar(&recordsRootPID, "root-pid", 0,
		"Root process id whose records are listed")
	recordsCmd.Flags().StringVar(&recordsDir, "dir", "",
		"Record directory")
	_ = recordsCmd.MarkFlagRequired("root-pid")

	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, args []string) error {
	if recordsRootPID <= 0 {
		return fmt.Errorf("--root-pid must be a positive process id")
	}

	store := tracker.NewStoreFromEnv(nil)
	if recordsDir != "" {
		store = tracker.NewStore(nil, recordsDir)
	}

	paths, err := store.Records(recordsRootPID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintf(out, "No records for root pid %d in %s\n", recordsRootPID, store.Dir())
		return nil
	}

	rows := make([][2]string, 0, len(paths))
	for _, path := range paths {
		tables, err := store.Read(path)
		if err != nil {
			rows = append(rows, [2]string{filepath.Base(path), "(unreadable: " + err.Error() + ")"})
			continue
		}
		rows = append(rows, [2]string{filepath.Base(path), strings.Join(tables.Names(), ", ")})
	}

	printRecords(out, rows)
	fmt.Fprintf(out, "\nTotal: %d record(s) in %s\n", len(paths), store.Dir())
	return nil
}

// printRecords writes record names and tables as two aligned columns.
func printRecords(w io.Writer, rows [][2]string) {
	width := runewidth.StringWidth("RECORD")
	for _, row := range rows {
		if n := runewidth.StringWidth(row[0]); n > width {
			width = n
		}
	}

	fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight("RECORD", width), "TABLES")
	for _, row := range rows {
		fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(row[0], width), row[1])
	}
}
