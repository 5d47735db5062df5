package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/middleware"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// NewListCmd creates the list command, an overview of every stored setting
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show OIDC providers, the CORS policy and rate limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			providers, err := database.NewOIDCConfigRepository(db).List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list OIDC configs: %w", err)
			}
			settings := database.NewSettingsRepository(db)
			policy, err := settings.GetCorsPolicy(ctx)
			if err != nil {
				return err
			}
			limits, err := settings.ListRateLimits(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "OIDC providers:")
			if err := printProviders(out, providers); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nCORS:")
			printCorsPolicy(out, policy)
			fmt.Fprintln(out, "\nRate limits:")
			return printRateLimits(out, limits)
		},
	}
}

func printProviders(w io.Writer, providers []*models.OIDCConfig) error {
	if len(providers) == 0 {
		fmt.Fprintln(w, "  none (use 'oidc <provider-name>' to add one)")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  PROVIDER\tISSUER\tCLIENT ID\tREDIRECT URI\tJWKS")
	for _, p := range providers {
		jwks := "(discovered)"
		if p.JWKSUrl != nil {
			jwks = *p.JWKSUrl
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.Provider, p.Issuer, p.ClientID, p.RedirectURI, jwks)
	}
	return tw.Flush()
}

func printCorsPolicy(w io.Writer, policy *models.CorsPolicy) {
	if policy == nil {
		fmt.Fprintln(w, "  no policy stored; servers allow FRONTEND_URL")
		return
	}
	fmt.Fprintf(w, "  Origins:           %s\n", strings.Join(policy.Origins, ", "))
	fmt.Fprintf(w, "  Allow credentials: %v\n", policy.AllowCredentials)
	fmt.Fprintf(w, "  Max-Age:           %ds\n", policy.MaxAge)
	fmt.Fprintf(w, "  Updated:           %s\n", policy.UpdatedAt.Format(timeLayout))
}

// printRateLimits lists every scope, marking scopes without a stored rate
func printRateLimits(w io.Writer, stored []*models.RateLimit) error {
	byScope := make(map[string]*models.RateLimit, len(stored))
	for _, l := range stored {
		byScope[l.Scope] = l
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  SCOPE\tRATE\tUPDATED")
	for _, scope := range models.RateScopes {
		if l, ok := byScope[scope]; ok {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", scope, l.Rate, l.UpdatedAt.Format(timeLayout))
		} else {
			fmt.Fprintf(tw, "  %s\t%s\t(default)\n", scope, middleware.DefaultRate)
		}
	}
	return tw.Flush()
}
