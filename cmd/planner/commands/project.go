package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				printProjects(cmd.OutOrStdout(), a.ctrl.Snapshot())
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show <project-id>",
			Short: "Show a project and its sub-tasks",
			Args:  cobra.ExactArgs(1),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				b := a.ctrl.Snapshot()
				i := b.FindProject(args[0])
				if i < 0 {
					return fmt.Errorf("project %s not found", args[0])
				}
				printProject(cmd.OutOrStdout(), b.Projects[i])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a project",
			Args:  cobra.MinimumNArgs(1),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				p, err := a.ctrl.AddProject(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added project %q (%s)\n", p.Name, p.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rename <project-id> <name>",
			Short: "Rename a project and its scheduled copies",
			Args:  cobra.MinimumNArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.RenameProject(cmd.Context(), args[0], strings.Join(args[1:], " "))
			}),
		},
		&cobra.Command{
			Use:     "rm <project-id>",
			Aliases: []string{"remove", "delete"},
			Short:   "Delete a project and everything scheduled from it",
			Args:    cobra.ExactArgs(1),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.RemoveProject(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "move <from> <to>",
			Short: "Move a project to another position in the list",
			Args:  cobra.ExactArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				from, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[0])
				}
				to, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[1])
				}
				return a.ctrl.ReorderProjects(cmd.Context(), from, to)
			}),
		},
	)
	return cmd
}

func newSubTaskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subtask",
		Aliases: []string{"subtasks", "st"},
		Short:   "Manage a project's sub-tasks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <project-id> <text>",
			Short: "Add a sub-task",
			Args:  cobra.MinimumNArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				st, err := a.ctrl.AddSubTask(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added sub-task %q (%s)\n", st.Text, st.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "edit <project-id> <subtask-id> <text>",
			Short: "Change a sub-task's text everywhere it appears",
			Args:  cobra.MinimumNArgs(3),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.EditSubTask(cmd.Context(), args[0], args[1], strings.Join(args[2:], " "))
			}),
		},
		&cobra.Command{
			Use:   "toggle <project-id> <subtask-id>",
			Short: "Mark a sub-task done or not done",
			Args:  cobra.ExactArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.ToggleSubTask(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:     "rm <project-id> <subtask-id>",
			Aliases: []string{"remove", "delete"},
			Short:   "Delete a sub-task",
			Args:    cobra.ExactArgs(2),
			RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				return a.ctrl.RemoveSubTask(cmd.Context(), args[0], args[1])
			}),
		},
	)
	return cmd
}
