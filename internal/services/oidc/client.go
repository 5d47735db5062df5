package oidc

import (
	"context"
	"strings"

	"github.com/benvon/schedule-builder/internal/models"
	"golang.org/x/oauth2"
)

// Client drives the authorization code flow with PKCE
type Client struct {
	config *oauth2.Config
}

// NewClient creates a client from stored provider configuration
func NewClient(oidcConfig *models.OIDCConfig) *Client {
	clientSecret := ""
	if oidcConfig.ClientSecret != nil {
		clientSecret = *oidcConfig.ClientSecret
	}
	issuer := strings.TrimRight(oidcConfig.Issuer, "/")

	return &Client{config: &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       strings.Fields(DefaultScope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/oauth2/authorize",
			TokenURL: issuer + "/oauth2/token",
		},
	}}
}

// NewClientFromLoginConfig creates a public client from the API's login configuration.
// redirectURI overrides the configured one when set, e.g. for a loopback listener.
func NewClientFromLoginConfig(lc *models.LoginConfig, redirectURI string) *Client {
	if redirectURI == "" {
		redirectURI = lc.RedirectURI
	}
	scope := lc.Scope
	if scope == "" {
		scope = DefaultScope
	}
	return &Client{config: &oauth2.Config{
		ClientID:    lc.ClientID,
		RedirectURL: redirectURI,
		Scopes:      strings.Fields(scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   lc.AuthorizationEndpoint,
			TokenURL:  lc.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}}
}

// AuthCodeURL returns the authorization URL for state and the PKCE verifier
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode exchanges an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

// TokenSource returns a source that refreshes tok when it expires
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return c.config.TokenSource(ctx, tok)
}

// NewVerifierString returns a fresh PKCE code verifier
func NewVerifierString() string {
	return oauth2.GenerateVerifier()
}
