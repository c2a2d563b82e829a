package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/rewinder"
)

var cleanAllCmd = &cobra.Command{
	Use:   "clean-all",
	Short: "Delete rows from every table of every configured database",
	Long: `Clean-all deletes every row from every table of each configured
database, except the tables listed in except_tables. Foreign key checks
are disabled for the delete batch.

Use it to bring a test database back to its seeded state before a run.

Example:
  gorewinder clean-all --config rewinder.yaml`,
	RunE: runCleanAll,
}

func init() {
	rootCmd.AddCommand(cleanAllCmd)
}

func runCleanAll(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	rw, err := rewinder.SetupFromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rw.Close()

	stats, err := rw.CleanAllWithStats(ctx)
	printStats(cmd.OutOrStdout(), stats)
	if err != nil {
		return fmt.Errorf("clean-all failed: %w", err)
	}
	return nil
}

// printStats writes one line per cleaned database.
func printStats(w io.Writer, stats []*rewinder.CleanStats) {
	for _, s := range stats {
		if s.Skipped {
			fmt.Fprintf(w, "%s: nothing to clean (%s)\n", s.Database, s.Duration)
			continue
		}
		fmt.Fprintf(w, "%s: cleared %d table(s) in %s\n", s.Database, len(s.TablesCleared), s.Duration)
		for _, table := range s.TablesCleared {
			fmt.Fprintf(w, "  - %s\n", table)
		}
	}
}
