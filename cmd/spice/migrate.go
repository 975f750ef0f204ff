package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-categorizer/internal/cli"
	"github.com/Veraticus/spice-categorizer/internal/config"
	"github.com/Veraticus/spice-categorizer/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has the category and rule
tables and indexes the application needs.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	slog.Info("Starting database migration",
		"database", cfg.DatabasePath,
		"status_only", status)

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status {
		current, dirty, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(cli.FormatTitle("Database Migration Status"))
		fmt.Printf("Database:        %s\n", cfg.DatabasePath)
		fmt.Printf("Current version: %d\n", current)
		fmt.Printf("Latest version:  %d\n", storage.ExpectedSchemaVersion)
		switch {
		case dirty:
			fmt.Println(cli.FormatWarning("Schema is dirty: a previous migration failed halfway"))
		case current < storage.ExpectedSchemaVersion:
			fmt.Println(cli.FormatInfo("Pending migrations. Run 'spice migrate' to apply them."))
		default:
			fmt.Println(cli.FormatSuccess("Schema is up to date"))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Database migrations completed successfully!"))
	return nil
}
