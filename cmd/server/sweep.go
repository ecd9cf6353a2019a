package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/campus-reservation/internal/jobs"
	"github.com/iliyamo/campus-reservation/internal/service"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Revert every lapsed hold once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ledger, closer, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			n, err := jobs.NewSweeper(service.NewCoordinator(ledger, service.Options{}), 0).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d units released\n", n)
			return nil
		},
	}
}
