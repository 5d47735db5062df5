package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd creates the ratelimit command with list and set subcommands
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage per-scope request rates",
		Long: "List or change the request rate of each limiter scope.\n\n" +
			"  auth      login configuration and account lookups\n" +
			"  schedule  schedule reads, saves and revisions\n\n" +
			"Rates use the ulule/limiter format, e.g. 5-S, 100-M, 1000-H.",
	}
	cmd.AddCommand(newRatelimitListCmd(), newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rate of every scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			stored, err := database.NewSettingsRepository(db).ListRateLimits(cmd.Context())
			if err != nil {
				return err
			}
			return printRateLimits(cmd.OutOrStdout(), stored)
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <scope> <rate>",
		Short:   "Set the rate of a scope",
		Example: "  schedule-builder-configure ratelimit set schedule 30-M",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, rate := args[0], strings.TrimSpace(args[1])
			if !database.ValidRateScope(scope) {
				return fmt.Errorf("unknown scope %q (want one of %s)", scope, strings.Join(models.RateScopes, ", "))
			}
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid rate %q: %w", rate, err)
			}
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewSettingsRepository(db).SetRateLimit(cmd.Context(), scope, rate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rate limit for %s set to %s\n", scope, rate)
			return nil
		},
	}
}
