package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/campus-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables for DB_DRIVER",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.WithField("driver", cfg.DBDriver).Info("schema up to date")
			return nil
		},
	}
}
