package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginConfigSource resolves client login settings. Implemented by oidc.Provider.
type LoginConfigSource interface {
	GetLoginConfig(ctx context.Context, providerName string) (*models.LoginConfig, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	logins       LoginConfigSource
	providerName string
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler for the named provider
func NewAuthHandler(logins LoginConfigSource, providerName string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logins: logins, providerName: providerName, logger: logger}
}

// RegisterPublicRoutes registers routes that need no token
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
}

// RegisterRoutes registers routes that run behind the auth middleware
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// GetOIDCLogin returns what a client needs to start a login
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	loginConfig, err := h.logins.GetLoginConfig(r.Context(), h.providerName)
	if err != nil {
		h.logger.Error("oidc_login_config_failed", zap.String("provider", h.providerName), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	respondJSON(w, http.StatusOK, user)
}
