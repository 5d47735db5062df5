package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the schedule with a JSON export",
		Long:  "Replace everything with the bundle in file. Older and partially broken exports are upgraded and repaired on the way in.",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if err := a.ctrl.Import(cmd.Context(), raw); err != nil {
				return err
			}
			b := a.ctrl.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d projects\n", len(b.Projects))
			return nil
		}),
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the schedule as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			out, err := a.ctrl.Export()
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}
			if err := os.WriteFile(args[0], append(out, '\n'), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[0], err)
			}
			return nil
		}),
	}
}
