// Package commands implements the planner CLI: a terminal front end for the
// schedule builder that works offline and syncs to an account once signed in.
package commands

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd builds the planner command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "planner",
		Short:         "Plan your day in hourly slots",
		Long:          "Build projects with sub-tasks and drop them into the hours of your day. Data stays on this device until you log in, then follows your account.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.schedule-builder/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newProjectCmd(opts),
		newSubTaskCmd(opts),
		newScheduleCmd(opts),
		newSlotsCmd(),
		newImportCmd(opts),
		newExportCmd(opts),
		newStatusCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
	)
	return cmd
}
