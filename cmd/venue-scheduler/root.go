package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. Every call returns a fresh tree so
// tests can execute commands in isolation.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "venue-scheduler",
		Short: "Venue booking engine: availability, technical capacity and priority conflicts",
		Long: `venue-scheduler decides whether an event can be booked into a space,
checks the shared technical support pool and tracks priority conflicts
between events.

Configuration is read from SCHEDULER_* environment variables, an optional
.env file (SCHEDULER_ENV_FILE) and an optional YAML file (SCHEDULER_CONFIG_FILE).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newAvailabilityCommand(),
		newCapacityCommand(),
		newConflictsCommand(),
	)
	return root
}
