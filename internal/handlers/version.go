package handlers

import (
	"net/http"

	"github.com/benvon/schedule-builder/internal/models"
)

// Version is the build version, set with -ldflags "-X .../internal/handlers.Version=..."
var Version = "dev"

// VersionInfo reports the build version and the bundle schema version the server writes
func VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":        Version,
		"schema_version": models.AppVersion,
	})
}
