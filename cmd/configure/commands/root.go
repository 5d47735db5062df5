// Package commands implements schedule-builder-configure, the operator CLI
// for the settings the API server reads from Postgres.
package commands

import "github.com/spf13/cobra"

// NewRootCmd assembles the configure command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedule-builder-configure",
		Short:         "Configuration tool for the Schedule Builder API",
		Long:          "Manage the database schema, OIDC providers, the CORS policy and rate limits.\nConnects with DATABASE_URL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		NewMigrateCmd(),
		NewOIDCCmd(),
		NewListCmd(),
		NewTestCmd(),
		NewCorsCmd(),
		NewRatelimitCmd(),
	)
	return root
}
