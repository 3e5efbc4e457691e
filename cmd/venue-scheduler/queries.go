package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
	"github.com/example/venue-scheduler/internal/scheduler"
)

// slotFlags are the date and time-of-day flags shared by slot queries.
type slotFlags struct {
	date   string
	from   string
	to     string
	before int
	after  int
	ignore string
}

func (f *slotFlags) register(cmd *cobra.Command, withTimes bool) {
	cmd.Flags().StringVar(&f.date, "date", "", "Civil date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	if !withTimes {
		return
	}
	cmd.Flags().StringVar(&f.from, "from", "", "Slot start, HH:MM")
	cmd.Flags().StringVar(&f.to, "to", "", "Slot end, HH:MM (24:00 for midnight)")
	cmd.Flags().IntVar(&f.before, "buffer-before", 0, "Setup minutes before the slot")
	cmd.Flags().IntVar(&f.after, "buffer-after", 0, "Teardown minutes after the slot")
	cmd.Flags().StringVar(&f.ignore, "ignore", "", "Event ID to leave out of the check")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func (f *slotFlags) parseDate() (time.Time, error) {
	return scheduler.ParseDate(f.date)
}

func (f *slotFlags) parseSlot() (time.Time, scheduler.TimeOfDay, scheduler.TimeOfDay, error) {
	date, err := f.parseDate()
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	from, err := scheduler.ParseTimeOfDay(f.from)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	to, err := scheduler.ParseTimeOfDay(f.to)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	return date, from, to, nil
}

// withApp bootstraps the application around a one-shot query.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("failed to close resources", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func newAvailabilityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Query space and location availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var check slotFlags
	var spaceID, location string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a slot is free in a space or free location",
		Example: `  venue-scheduler availability check --space hall --date 2025-03-14 --from 10:00 --to 12:00
  venue-scheduler availability check --location Courtyard --date 2025-03-14 --from 18:00 --to 24:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, from, to, err := check.parseSlot()
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.availability().CheckAvailability(ctx, application.AvailabilityQuery{
					Date:          date,
					SpaceID:       strings.TrimSpace(spaceID),
					FreeLocation:  strings.TrimSpace(location),
					From:          from,
					To:            to,
					BufferBefore:  check.before,
					BufferAfter:   check.after,
					IgnoreEventID: check.ignore,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), availabilityOutput{
					Available: result.Available,
					Conflicts: toConflictItems(result.Conflicts),
				})
			})
		},
	}
	check.register(checkCmd, true)
	checkCmd.Flags().StringVar(&spaceID, "space", "", "Catalogued space ID")
	checkCmd.Flags().StringVar(&location, "location", "", "Free-text location")
	checkCmd.MarkFlagsMutuallyExclusive("space", "location")
	checkCmd.MarkFlagsOneRequired("space", "location")

	var occupancy slotFlags
	occupancyCmd := &cobra.Command{
		Use:   "occupancy SPACE_ID",
		Short: "Print the raw booking timeline of a space for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := occupancy.parseDate()
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				blocks, err := a.availability().GetSpaceOccupancy(ctx, args[0], date)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toOccupancy(blocks))
			})
		},
	}
	occupancy.register(occupancyCmd, false)

	cmd.AddCommand(checkCmd, occupancyCmd)
	return cmd
}

func newCapacityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Query the shared technical support pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var check slotFlags
	var mode string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether technical staff is available for a slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, from, to, err := check.parseSlot()
			if err != nil {
				return err
			}
			techMode, err := scheduler.ParseTechSupportMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ok, err := a.techCapacity().HasCapacity(ctx, application.CapacityQuery{
					Date:          date,
					From:          from,
					To:            to,
					BufferBefore:  check.before,
					BufferAfter:   check.after,
					Mode:          techMode,
					IgnoreEventID: check.ignore,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]bool{"has_capacity": ok})
			})
		},
	}
	check.register(checkCmd, true)
	checkCmd.Flags().StringVar(&mode, "mode", string(scheduler.TechSupportAttended), "SETUP_ONLY or ATTENDED")

	var blocks slotFlags
	blocksCmd := &cobra.Command{
		Use:   "blocks",
		Short: "Print per-block usage of the technical pool for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := blocks.parseDate()
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				usage, err := a.techCapacity().GetCapacity(ctx, date)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toBlocks(usage))
			})
		},
	}
	blocks.register(blocksCmd, false)

	var events slotFlags
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Print the technical support roster for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := events.parseDate()
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				roster, err := a.techCapacity().GetEvents(ctx, date)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toTechEvents(roster))
			})
		},
	}
	events.register(eventsCmd, false)

	cmd.AddCommand(checkCmd, blocksCmd, eventsCmd)
	return cmd
}

func newConflictsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve priority conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list HIGH_EVENT_ID",
		Short: "List the open conflicts raised by a high priority event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				conflicts, err := a.priorityConflicts().GetOpenConflicts(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toConflicts(conflicts))
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get CODE",
		Short: "Print one conflict by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				conflict, err := a.priorityConflicts().GetConflict(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toConflict(conflict))
			})
		},
	}

	var displaceActor string
	displaceCmd := &cobra.Command{
		Use:   "displace HIGH_EVENT_ID",
		Short: "Register conflicts for every lower priority booking the event collides with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.priorityConflicts().Displace(ctx, args[0], displaceActor)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), displaceOutput{
					Conflicts: toConflicts(result.Conflicts),
					Blocking:  toConflictItems(result.Blocking),
				})
			})
		},
	}
	displaceCmd.Flags().StringVar(&displaceActor, "actor", "", "Coordinator registering the conflicts")

	var decision, actor, reason, targetSpace string
	var target slotFlags
	decideCmd := &cobra.Command{
		Use:   "decide CODE",
		Short: "Close a conflict by keeping or rebooking the displaced event",
		Example: `  venue-scheduler conflicts decide PRIO-20250314-00001 --decision KEEP --actor director
  venue-scheduler conflicts decide PRIO-20250314-00001 --decision REBOOK_OTHER --actor director \
      --space annex --date 2025-03-14 --from 14:00 --to 16:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := application.DecisionRequest{
				Code:      args[0],
				Decision:  persistence.ConflictDecision(strings.ToUpper(strings.TrimSpace(decision))),
				DecidedBy: actor,
				Reason:    reason,
			}
			if req.Decision == persistence.ConflictDecisionRebookOther {
				if targetSpace == "" || target.date == "" || target.from == "" || target.to == "" {
					return errors.New("REBOOK_OTHER requires --space, --date, --from and --to")
				}
				date, from, to, err := target.parseSlot()
				if err != nil {
					return err
				}
				req.Target = &application.RebookTarget{Date: date, From: from, To: to, SpaceID: strings.TrimSpace(targetSpace)}
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				conflict, err := a.priorityConflicts().ApplyDecision(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toConflict(conflict))
			})
		},
	}
	decideCmd.Flags().StringVar(&decision, "decision", string(persistence.ConflictDecisionKeep), "KEEP or REBOOK_OTHER")
	decideCmd.Flags().StringVar(&actor, "actor", "", "Director recording the decision")
	decideCmd.Flags().StringVar(&reason, "reason", "", "Free-text justification")
	decideCmd.Flags().StringVar(&targetSpace, "space", "", "Target space for REBOOK_OTHER")
	decideCmd.Flags().StringVar(&target.date, "date", "", "Target date for REBOOK_OTHER, YYYY-MM-DD")
	decideCmd.Flags().StringVar(&target.from, "from", "", "Target start for REBOOK_OTHER, HH:MM")
	decideCmd.Flags().StringVar(&target.to, "to", "", "Target end for REBOOK_OTHER, HH:MM")
	_ = decideCmd.MarkFlagRequired("actor")

	cmd.AddCommand(listCmd, getCmd, displaceCmd, decideCmd)
	return cmd
}
