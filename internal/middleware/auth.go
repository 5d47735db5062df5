package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/schedule-builder/internal/database"
	logpkg "github.com/benvon/schedule-builder/internal/logger"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier checks a bearer token and returns its claims. Implemented by oidc.Authenticator.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Auth rejects requests without a valid bearer token and attaches the
// caller's user record, creating it on first sight, to the request context
func Auth(verifier TokenVerifier, users database.UserRepositoryInterface, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.Debug("token_rejected", logpkg.Err(err))
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			user, err := users.EnsureFromClaims(ctx, claims)
			if err != nil {
				logger.Error("user_lookup_failed", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to resolve user", logger)
				return
			}

			r = r.WithContext(request.WithUser(ctx, user))
			noteUser(w, r)
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
