package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var issuer, domain, clientID, clientSecret, redirectURI, jwksURL string

	cmd := &cobra.Command{
		Use:   "oidc <provider-name>",
		Short: "Configure OIDC provider",
		Long:  "Create or update an OIDC provider used to verify API tokens and drive planner login (e.g. 'cognito', 'okta', 'auth0')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.TrimSpace(args[0])
			if provider == "" {
				return fmt.Errorf("provider name cannot be empty")
			}
			if issuer == "" || clientID == "" || redirectURI == "" {
				return fmt.Errorf("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
			}

			cfg := &models.OIDCConfig{
				ID:          uuid.New(),
				Provider:    provider,
				Issuer:      strings.TrimRight(issuer, "/"),
				ClientID:    clientID,
				RedirectURI: redirectURI,
			}
			if domain != "" {
				cfg.Domain = &domain
			}
			if clientSecret != "" {
				cfg.ClientSecret = &clientSecret
			}
			// left empty, the API resolves it through discovery
			if jwksURL != "" {
				cfg.JWKSUrl = &jwksURL
			}

			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewOIDCConfigRepository(db).Upsert(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("failed to save OIDC config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved OIDC configuration for provider: %s\n", provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "OAuth2 domain (optional, e.g. a Cognito hosted UI domain)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "JWKS URL (optional, discovered from the issuer when empty)")

	return cmd
}
