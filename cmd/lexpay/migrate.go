package main

import (
	"lexpay/internal/migrate"

	"github.com/spf13/cobra"
)

func migrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate.Up(cmd.Context(), a.cfg.Database.DSN()); err != nil {
				return err
			}
			a.log.Info().Msg("migrations applied")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate.Down(cmd.Context(), a.cfg.Database.DSN()); err != nil {
				return err
			}
			a.log.Info().Msg("rolled back one migration")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate.Status(cmd.Context(), a.cfg.Database.DSN())
		},
	})
	return cmd
}
