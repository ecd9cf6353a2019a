// Command server runs the campus reservation service.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/campus-reservation/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "campus-reservation",
		Short:         "Reservation service for seats, presentation slots and faculty appointments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd(), newSweepCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}
