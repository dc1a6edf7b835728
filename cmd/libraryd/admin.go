package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/config"
	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/ledger"
	"github.com/bookstore/services/library/internal/repo"
	"github.com/bookstore/services/library/pkg/logger"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
			defer log.Sync()

			database, err := openDatabase(cfg, log)
			if err != nil {
				log.Error("Migration failed", zap.Error(err))
				return err
			}
			defer database.Close()

			log.Info("Schema is up to date")
			return nil
		},
	}
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a starter catalog when no books exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
			defer log.Sync()

			database, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := db.Seed(cmd.Context(), database)
			if err != nil {
				log.Error("Seeding failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d book(s)\n", n)
			return nil
		},
	}
}

func newVerifyCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every book's copy counts against its active loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
			defer log.Sync()

			database, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer database.Close()

			store := repo.NewRepository(database, log)
			report, err := ledger.NewLedger(database, store, log, nil).Verify(cmd.Context())
			if err != nil {
				return err
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return report.Err()
		},
	}
}
