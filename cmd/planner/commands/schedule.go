package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/spf13/cobra"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var all bool

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the day",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			printSchedule(cmd.OutOrStdout(), a.ctrl.Snapshot(), all)
			return nil
		}),
	}
	show.Flags().BoolVar(&all, "all", false, "Include empty slots")

	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"s"},
		Short:   "Place projects into time slots",
	}
	cmd.AddCommand(
		show,
		&cobra.Command{
			Use:   "add <project-id> <slot-id>",
			Short: "Schedule a snapshot of a project into a slot",
			Args:  cobra.ExactArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				t, err := a.ctrl.ScheduleProject(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %q in %s (%s)\n", t.ProjectName, args[1], t.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "move <task-id> <slot-id>",
			Short: "Move a scheduled task to another slot",
			Args:  cobra.ExactArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.MoveTask(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:     "rm <task-id>",
			Aliases: []string{"remove", "delete"},
			Short:   "Remove a scheduled task",
			Args:    cobra.ExactArgs(1),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.DeleteTask(cmd.Context(), args[0])
			}),
		},
	)
	return cmd
}

func newSlotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the time slots of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tSECTION")
			for _, s := range models.TimeSlots() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Label, s.Section)
			}
			return tw.Flush()
		},
	}
}
