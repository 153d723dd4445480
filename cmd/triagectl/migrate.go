package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/internal/store"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every pending migration in DATABASE_MIGRATIONS_DIR (default "migrations")
to DATABASE_URL. Use --status to print the current schema version instead.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "print the schema version without migrating")
	cmd.Flags().String("dir", "", "migrations directory (overrides DATABASE_MIGRATIONS_DIR)")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	dir, _ := cmd.Flags().GetString("dir")

	db, err := databaseConfig(dir)
	if err != nil {
		return err
	}

	if !status {
		if err := store.RunMigrations(db.URL, db.MigrationsDir); err != nil {
			return err
		}
	}

	v, dirty, err := store.MigrationVersion(db.URL, db.MigrationsDir)
	if err != nil {
		return err
	}
	return printMigrationStatus(cmd, v, dirty)
}

func printMigrationStatus(cmd *cobra.Command, version uint, dirty bool) error {
	out := cmd.OutOrStdout()
	switch {
	case version == 0:
		_, err := fmt.Fprintln(out, "schema version: none")
		return err
	case dirty:
		_, err := fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
		return err
	default:
		_, err := fmt.Fprintf(out, "schema version: %d\n", version)
		return err
	}
}

func databaseConfig(dirOverride string) (config.DatabaseConfig, error) {
	db := config.LoadDatabase()
	if db.URL == "" {
		return db, errors.New("DATABASE_URL is required")
	}
	if dirOverride != "" {
		db.MigrationsDir = dirOverride
	}
	return db, nil
}
