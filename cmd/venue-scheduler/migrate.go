package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQLite migrations and print the schema status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if a.sqlite == nil {
				return errors.New("migrate requires SCHEDULER_STORAGE=sqlite")
			}
			if !statusOnly {
				if err := a.sqlite.Migrate(ctx); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
			}
			status, err := a.sqlite.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			for _, applied := range status.Applied {
				fmt.Fprintf(out, "applied  %s  %s\n", applied.Version, applied.AppliedAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
			for _, pending := range status.Pending {
				fmt.Fprintf(out, "pending  %s  %s\n", pending.Version, pending.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only print the status, do not apply pending migrations")
	return cmd
}
