package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/config"
	"github.com/modelsilo/silo/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the metadata database.

This command applies pending migrations to the configured metadata
database (SQLite or PostgreSQL). It is required after upgrading silo
when schema changes have been made.

Examples:
  # Run migrations with default config
  silo migrate

  # Run migrations with custom config
  silo migrate --config /etc/silo/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("running database migrations", "type", cfg.Database.Type)

	// Opening the store triggers auto-migration.
	ctx := context.Background()
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.ListUsers(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
