package commands

import (
	"fmt"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/services/oidc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test OIDC configuration",
		Long:  "Resolve discovery, JWKS and login endpoints for a configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required")
			}

			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			p := oidc.NewProvider(database.NewOIDCConfigRepository(db), zap.NewNop())

			cfg, err := p.GetConfig(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to get OIDC config: %w", err)
			}
			fmt.Fprintf(out, "Testing OIDC configuration for provider: %s\n", provider)
			fmt.Fprintf(out, "Issuer: %s\n", cfg.Issuer)

			if d, err := p.Discover(ctx, cfg.Issuer); err != nil {
				fmt.Fprintf(out, "! Discovery failed, falling back to issuer defaults: %v\n", err)
			} else {
				fmt.Fprintf(out, "✓ Discovery document found (issuer %s)\n", d.Issuer)
			}

			jwksURL := p.JWKSURL(ctx, cfg)
			set, err := oidc.NewJWKSManager(0).GetJWKS(ctx, jwksURL)
			if err != nil {
				return fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
			}
			fmt.Fprintf(out, "✓ JWKS endpoint %s returned %d keys\n", jwksURL, set.Len())

			lc, err := p.GetLoginConfig(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to build login config: %w", err)
			}
			fmt.Fprintf(out, "✓ Authorization endpoint: %s\n", lc.AuthorizationEndpoint)
			fmt.Fprintf(out, "✓ Token endpoint: %s\n", lc.TokenEndpoint)

			fmt.Fprintln(out, "\n✓ OIDC configuration test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (required)")

	return cmd
}
