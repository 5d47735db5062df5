// Package oidc resolves identity provider configuration, verifies access
// tokens against the provider's JWKS, and drives the authorization code flow.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"go.uber.org/zap"
)

// DefaultScope is requested on every login
const DefaultScope = "openid email profile"

// ConfigStore loads provider configuration. Implemented by database.OIDCConfigRepository.
type ConfigStore interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Discovery is the subset of the OpenID discovery document this package reads
type Discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Provider manages OIDC provider configuration
type Provider struct {
	store  ConfigStore
	client *http.Client
	logger *zap.Logger
}

// NewProvider creates a new OIDC provider manager
func NewProvider(store ConfigStore, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		store:  store,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.store.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Discover fetches the provider's discovery document
func (p *Provider) Discover(ctx context.Context, issuer string) (*Discovery, error) {
	url := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}
	var d Discovery
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return &d, nil
}

// JWKSURL returns the key set location for config: the configured URL, then
// discovery, then the conventional path under the issuer
func (p *Provider) JWKSURL(ctx context.Context, config *models.OIDCConfig) string {
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		return *config.JWKSUrl
	}
	if d, err := p.Discover(ctx, config.Issuer); err == nil && d.JWKSURI != "" {
		return d.JWKSURI
	}
	return strings.TrimRight(config.Issuer, "/") + "/.well-known/jwks.json"
}

// GetLoginConfig returns the configuration a client needs to log in
func (p *Provider) GetLoginConfig(ctx context.Context, providerName string) (*models.LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	issuer := strings.TrimRight(config.Issuer, "/")
	authEndpoint := issuer + "/oauth2/authorize"
	tokenEndpoint := issuer + "/oauth2/token"

	if d, err := p.Discover(ctx, config.Issuer); err != nil {
		p.logger.Debug("oidc_discovery_failed", zap.String("provider", providerName), zap.Error(err))
	} else {
		if d.AuthorizationEndpoint != "" {
			authEndpoint = d.AuthorizationEndpoint
		}
		if d.TokenEndpoint != "" {
			tokenEndpoint = d.TokenEndpoint
		}
	}

	// Cognito hosted UI serves the OAuth2 endpoints from the domain, not the issuer
	if base := hostedDomainURL(config); base != "" {
		authEndpoint = base + "/oauth2/authorize"
		tokenEndpoint = base + "/oauth2/token"
	}

	return &models.LoginConfig{
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 DefaultScope,
	}, nil
}

func hostedDomainURL(config *models.OIDCConfig) string {
	if config.Domain == nil || *config.Domain == "" || !strings.Contains(config.Issuer, "cognito-idp.") {
		return ""
	}
	domain := strings.TrimRight(*config.Domain, "/")
	if strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
