package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/config"
	"github.com/bookstore/services/library/internal/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:          "libraryd",
		Short:        "Library circulation service",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver (sqlite or postgres)")
	flags.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	flags.StringVar(&cfg.PGDSN, "pg-dsn", cfg.PGDSN, "PostgreSQL connection string")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(cfg),
		newMigrateCmd(cfg),
		newSeedCmd(cfg),
		newVerifyCmd(cfg),
	)
	return root
}

// openDatabase connects to the configured store and brings its schema up to date
func openDatabase(cfg *config.Config, log *zap.Logger) (*db.DB, error) {
	log.Info("Connecting to database...", zap.String("driver", cfg.DBDriver))
	database, err := db.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
