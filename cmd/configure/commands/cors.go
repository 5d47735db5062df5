package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors command with show and set subcommands
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage the browser origins allowed to call the API",
		Long:  "Show or replace the CORS policy. Running servers pick up changes on their next reload.",
	}
	cmd.AddCommand(newCorsShowCmd(), newCorsSetCmd())
	return cmd
}

func newCorsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Aliases: []string{"list"},
		Short:   "Show the stored CORS policy",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			policy, err := database.NewSettingsRepository(db).GetCorsPolicy(cmd.Context())
			if err != nil {
				return err
			}
			printCorsPolicy(cmd.OutOrStdout(), policy)
			return nil
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	policy := &models.CorsPolicy{}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the CORS policy",
		Example: "  schedule-builder-configure cors set --origin https://planner.example.com\n" +
			"  schedule-builder-configure cors set --origin https://a.example.com,https://b.example.com --max-age 600",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy.Origins = database.NormalizeOrigins(policy.Origins)
			if len(policy.Origins) == 0 {
				return errors.New("--origin is required")
			}
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewSettingsRepository(db).SetCorsPolicy(cmd.Context(), policy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CORS policy updated: %s\n", strings.Join(policy.Origins, ", "))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&policy.Origins, "origin", nil, "Allowed origin (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&policy.AllowCredentials, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&policy.MaxAge, "max-age", 86400, "Access-Control-Max-Age in seconds")
	return cmd
}
