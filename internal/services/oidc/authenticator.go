package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"go.uber.org/zap"
)

// Authenticator verifies bearer tokens against the configured provider
type Authenticator struct {
	provider     *Provider
	jwks         *JWKSManager
	providerName string
	audience     string
	logger       *zap.Logger
}

// NewAuthenticator creates an authenticator for providerName. An empty audience skips the aud check.
func NewAuthenticator(provider *Provider, jwks *JWKSManager, providerName, audience string, logger *zap.Logger) *Authenticator {
	if jwks == nil {
		jwks = NewJWKSManager(time.Hour)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		provider:     provider,
		jwks:         jwks,
		providerName: providerName,
		audience:     audience,
		logger:       logger,
	}
}

// Verify returns the claims of a valid token. A failure against a cached key
// set is retried once with a fresh set to pick up rotated keys.
func (a *Authenticator) Verify(ctx context.Context, token string) (*models.JWTClaims, error) {
	config, err := a.provider.GetConfig(ctx, a.providerName)
	if err != nil {
		return nil, err
	}
	jwksURL := a.provider.JWKSURL(ctx, config)
	verifier := NewVerifier(a.jwks, config.Issuer, a.audience)

	claims, err := verifier.Verify(ctx, token, jwksURL)
	if err == nil {
		return claims, nil
	}

	a.jwks.Invalidate(jwksURL)
	claims, retryErr := verifier.Verify(ctx, token, jwksURL)
	if retryErr != nil {
		a.logger.Debug("token_verification_failed",
			zap.String("issuer", config.Issuer),
			zap.String("jwks_url", jwksURL),
			zap.Error(retryErr),
		)
		return nil, fmt.Errorf("token verification failed: %w", retryErr)
	}
	return claims, nil
}
