package main

import (
	"github.com/spf13/cobra"

	"workdesk/internal/logging"
)

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// opening the database runs the migrations
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			logging.Logger.WithField("database", a.cfg.DatabaseURL).Info("schema is up to date")
			return nil
		},
	}
}
