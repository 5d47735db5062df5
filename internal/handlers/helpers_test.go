package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		validate func(*testing.T, map[string]any)
	}{
		{
			name:   "object",
			status: http.StatusOK,
			data:   map[string]string{"message": "hello"},
			validate: func(t *testing.T, body map[string]any) {
				data, ok := body["data"].(map[string]any)
				if !ok || data["message"] != "hello" {
					t.Errorf("Expected data.message hello, got %v", body["data"])
				}
			},
		},
		{
			name:   "nil data",
			status: http.StatusCreated,
			validate: func(t *testing.T, body map[string]any) {
				if body["data"] != nil {
					t.Error("Expected data to be nil")
				}
			},
		},
		{
			name:   "array data",
			status: http.StatusOK,
			data:   []string{"a", "b", "c"},
			validate: func(t *testing.T, body map[string]any) {
				if data, ok := body["data"].([]any); !ok || len(data) != 3 {
					t.Errorf("Expected 3-element array, got %v", body["data"])
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %q", ct)
			}
			body := decodeEnvelope(t, w)
			if success, ok := body["success"].(bool); !ok || !success {
				t.Error("Expected success to be true")
			}
			ts, _ := body["timestamp"].(string)
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("Timestamp %q is not RFC3339: %v", ts, err)
			}
			tt.validate(t, body)
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		errorType   string
		message     string
		wantMessage string
	}{
		{name: "bad request", status: http.StatusBadRequest, errorType: "Bad Request", message: "Invalid input", wantMessage: "Invalid input"},
		{name: "control characters stripped", status: http.StatusBadRequest, errorType: "Bad Request", message: "bad\x00 input", wantMessage: "bad input"},
		{
			name:        "long message truncated",
			status:      http.StatusInternalServerError,
			errorType:   "Internal Server Error",
			message:     strings.Repeat("x", 300),
			wantMessage: strings.Repeat("x", maxErrorMessageLength) + "...",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, tt.status, tt.errorType, tt.message)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			body := decodeEnvelope(t, w)
			if success, ok := body["success"].(bool); !ok || success {
				t.Error("Expected success to be false")
			}
			if body["error"] != tt.errorType {
				t.Errorf("Expected error %q, got %v", tt.errorType, body["error"])
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("Expected message %q, got %v", tt.wantMessage, body["message"])
			}
		})
	}
}

func TestReadJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{name: "object", body: `{"projects":[]}`, wantOK: true},
		{name: "array", body: `[1,2]`, wantStatus: http.StatusBadRequest},
		{name: "invalid", body: `{"projects":`, wantStatus: http.StatusBadRequest},
		{name: "empty", body: ``, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"projects":[]}`, limit: 4, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPut, "/api/v1/schedule", strings.NewReader(tt.body))
			if tt.limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, tt.limit)
			}

			raw, ok := readJSONObject(w, r)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				if string(raw) != tt.body {
					t.Errorf("raw = %q, want %q", raw, tt.body)
				}
				return
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	if user := requireUser(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)); user != nil {
		t.Fatalf("requireUser() = %v, want nil", user)
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if body := decodeEnvelope(t, w); body["error"] != "Unauthorized" {
		t.Errorf("error = %v, want Unauthorized", body["error"])
	}
}
