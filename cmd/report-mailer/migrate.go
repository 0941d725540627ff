package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sungwon/report-mailer/internal/storage"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the reports database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(*configPath, func(a *app, m *storage.Migrator) error {
					a.log.Info().Msg("running migrations...")
					if err := m.Up(); err != nil {
						return err
					}
					a.log.Info().Msg("migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(*configPath, func(a *app, m *storage.Migrator) error {
					a.log.Info().Msg("rolling back last migration...")
					if err := m.Down(); err != nil {
						return err
					}
					a.log.Info().Msg("rollback completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(*configPath, func(_ *app, m *storage.Migrator) error {
					st, err := m.Status()
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					if !st.Applied {
						fmt.Fprintln(out, "No migrations have been applied")
						return nil
					}
					fmt.Fprintf(out, "Current version: %d\n", st.Version)
					fmt.Fprintf(out, "Dirty: %v\n", st.Dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(configPath string, fn func(*app, *storage.Migrator) error) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := storage.NewMigrator(a.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(a, m)
}
