package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier verifies access tokens issued by one provider
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	audience    string
}

// NewVerifier creates a verifier for tokens from issuer. An empty audience skips the aud check.
func NewVerifier(jwksManager *JWKSManager, issuer, audience string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		audience:    audience,
	}
}

// Verify checks the signature and standard claims of tokenString and returns its claims
func (v *Verifier) Verify(ctx context.Context, tokenString, jwksURL string) (*models.JWTClaims, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, errors.New("token missing subject claim")
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")

	return claims, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
