package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/database"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and database connectivity",
	Long: `Validate checks the configuration file and connects to every
configured database.

Checks performed:
  - Configuration syntax and required fields
  - Adapter name
  - Database connectivity (one pinned session per database)

Tracker records are not touched.

Example:
  gorewinder validate --config rewinder.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting validation checks...")

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", GetConfigFile())
	cmd.Printf("Adapter: %s\n", cfg.Adapter)
	cmd.Printf("Databases: %d\n", len(cfg.Databases))
	cmd.Printf("Except tables: %v\n\n", cfg.ExceptTables)

	ctx := context.Background()

	hasErrors := false
	for i := range cfg.Databases {
		dbCfg := &cfg.Databases[i]
		cmd.Printf("--- Database: %s (%s:%d) ---\n", dbCfg.Database, dbCfg.Host, dbCfg.Port)

		client, err := database.Open(ctx, cfg.Adapter, dbCfg)
		if err != nil {
			cmd.Printf("❌ Connection failed: %v\n\n", err)
			hasErrors = true
			continue
		}

		err = client.Ping(ctx)
		client.Close()
		if err != nil {
			cmd.Printf("❌ Ping failed: %v\n\n", err)
			hasErrors = true
			continue
		}

		cmd.Printf("✅ Connected\n\n")
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more databases")
	}

	cmd.Println("=== Validation Complete ===")
	cmd.Println("✅ All databases reachable")
	return nil
}
