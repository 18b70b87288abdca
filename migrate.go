package main

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage metadata store schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(cmd, func(db *database.DB, logger *zap.Logger) error {
			return database.RunMigrations(stdlib.OpenDBFromPool(db.Pool), logger)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default 1 step)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		return withMigrationDB(cmd, func(db *database.DB, logger *zap.Logger) error {
			return database.MigrateDown(stdlib.OpenDBFromPool(db.Pool), steps, logger)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(cmd, func(db *database.DB, _ *zap.Logger) error {
			version, dirty, ok, err := database.MigrationVersion(stdlib.OpenDBFromPool(db.Pool))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no migrations applied")
				return nil
			}
			if dirty {
				fmt.Printf("%d (dirty)\n", version)
				return nil
			}
			fmt.Println(version)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrationDB(cmd *cobra.Command, fn func(*database.DB, *zap.Logger) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := connectDB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, logger)
}
