package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/request"
	"github.com/benvon/schedule-builder/internal/validation"
	"github.com/tidwall/gjson"
)

// maxErrorMessageLength caps the message field of error envelopes
const maxErrorMessageLength = 200

// envelope wraps every API response
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSON sends data in a success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

// respondJSONError sends an error envelope. message is shown to clients, so it
// is stripped of control characters and shortened.
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	message = validation.SanitizeText(message)
	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength] + "..."
	}
	writeEnvelope(w, status, envelope{Error: errorType, Message: message})
}

// requireUser returns the authenticated caller, or responds 401 and returns nil
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}

// readJSONObject reads a request body that must be a single JSON object. On
// failure it responds 400 or 413 and returns false.
func readJSONObject(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return nil, false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Failed to read request body")
		return nil, false
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Request body must be a JSON object")
		return nil, false
	}
	return raw, true
}
