package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/cleaner"
	"github.com/dbsmedya/gorewinder/internal/database"
	"github.com/dbsmedya/gorewinder/internal/types"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of every configured database",
	Long: `Tables connects to each configured database and lists its tables.
Tables in except_tables are marked as excluded; they are never cleared.

Example:
  gorewinder tables --config rewinder.yaml`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	for i := range cfg.Databases {
		dbCfg := &cfg.Databases[i]

		client, err := database.Open(ctx, cfg.Adapter, dbCfg)
		if err != nil {
			return err
		}

		cl, err := cleaner.New(client, dbCfg.Database, cfg.ExceptTables, log)
		if err != nil {
			client.Close()
			return err
		}

		all, err := cl.AllTables(ctx)
		client.Close()
		if err != nil {
			return fmt.Errorf("failed to list tables of %s: %w", dbCfg.Database, err)
		}

		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		printTables(cmd.OutOrStdout(), dbCfg.Database, all, types.NewTableSet(cl.ExceptTables()...))
	}
	return nil
}

// printTables writes the catalog of one database, marking excluded tables.
func printTables(w io.Writer, name string, all, except *types.TableSet) {
	fmt.Fprintf(w, "Database: %s\n", name)
	if all.IsEmpty() {
		fmt.Fprintln(w, "  (no tables)")
		return
	}

	excluded := 0
	for _, table := range all.Names() {
		if except.Has(table) {
			fmt.Fprintf(w, "  %s (excluded)\n", table)
			excluded++
			continue
		}
		fmt.Fprintf(w, "  %s\n", table)
	}
	fmt.Fprintf(w, "Total: %d table(s), %d excluded\n", all.Len(), excluded)
}
