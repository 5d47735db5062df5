package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{name: "GET without header", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "PUT json", method: http.MethodPut, contentType: "application/json", wantStatus: http.StatusOK},
		{name: "PUT json with charset", method: http.MethodPut, contentType: "application/json; charset=utf-8", wantStatus: http.StatusOK},
		{name: "PUT missing", method: http.MethodPut, wantStatus: http.StatusBadRequest},
		{name: "PUT text", method: http.MethodPut, contentType: "text/plain", wantStatus: http.StatusUnsupportedMediaType},
		{name: "PUT json lookalike", method: http.MethodPut, contentType: "application/jsonx", wantStatus: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := ContentType(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/schedule", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	h := SecurityHeaders(true)(http.NotFoundHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	for k, v := range securityHeaders {
		if got := w.Header().Get(k); got != v {
			t.Errorf("Header %s = %q, want %q", k, got, v)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("Expected no HSTS over plain HTTP")
	}
}
