package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the schedule is stored and whether it is in sync",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			out := cmd.OutOrStdout()
			st := a.ctrl.Status()
			b := a.ctrl.Snapshot()

			fmt.Fprintf(out, "Storage:   %s\n", st.Backend)
			if st.Identity != nil {
				who := st.Identity.Email
				if who == "" {
					who = st.Identity.UserID
				}
				fmt.Fprintf(out, "Account:   %s\n", who)
			} else {
				fmt.Fprintln(out, "Account:   not logged in")
			}
			if a.cfg.APIURL != "" {
				fmt.Fprintf(out, "API:       %s\n", a.cfg.APIURL)
			}
			fmt.Fprintf(out, "Data file: %s\n", a.cfg.DataPath)

			scheduled := 0
			for _, tasks := range b.Schedule {
				scheduled += len(tasks)
			}
			fmt.Fprintf(out, "Projects:  %d\n", len(b.Projects))
			fmt.Fprintf(out, "Scheduled: %d\n", scheduled)
			if st.ReadOnly {
				fmt.Fprintf(out, "Sync:      read-only, account unreachable: %v\n", st.SyncError)
			} else if st.SyncError != nil {
				fmt.Fprintf(out, "Sync:      error: %v\n", st.SyncError)
			} else {
				fmt.Fprintln(out, "Sync:      ok")
			}
			return nil
		}),
	}
}
