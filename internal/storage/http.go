package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	schedulePath = "/api/v1/schedule"
	mePath       = "/api/v1/auth/me"
	loginPath    = "/api/v1/auth/oidc/login"

	maxResponseBytes = 4 << 20
)

// HTTPRecordStore talks to the schedule API. The user is identified by the
// bearer token, so the userID arguments only label log lines.
type HTTPRecordStore struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPRecordStore creates a store for the API at baseURL. A nil token
// source sends unauthenticated requests.
func NewHTTPRecordStore(baseURL string, ts oauth2.TokenSource, logger *zap.Logger) *HTTPRecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: 15 * time.Second}
	if ts != nil {
		client.Transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}
	return &HTTPRecordStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Get returns the stored bundle payload
func (s *HTTPRecordStore) Get(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.do(ctx, http.MethodGet, schedulePath, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("remote_schedule_fetched", zap.String("user_id", userID), zap.Int("bytes", len(data)))
	return data, nil
}

// Upsert replaces the stored bundle payload
func (s *HTTPRecordStore) Upsert(ctx context.Context, userID string, payload []byte) error {
	if _, err := s.do(ctx, http.MethodPut, schedulePath, payload); err != nil {
		return err
	}
	s.logger.Debug("remote_schedule_saved", zap.String("user_id", userID), zap.Int("bytes", len(payload)))
	return nil
}

// Delete removes the stored bundle
func (s *HTTPRecordStore) Delete(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodDelete, schedulePath, nil)
	return err
}

// Me returns the account the token belongs to
func (s *HTTPRecordStore) Me(ctx context.Context) (*models.User, error) {
	data, err := s.do(ctx, http.MethodGet, mePath, nil)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// LoginConfig returns the OIDC endpoints the API expects clients to log in with
func (s *HTTPRecordStore) LoginConfig(ctx context.Context) (*models.LoginConfig, error) {
	data, err := s.do(ctx, http.MethodGet, loginPath, nil)
	if err != nil {
		return nil, err
	}
	var cfg models.LoginConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode login config: %w", err)
	}
	return &cfg, nil
}

// do sends a request and returns the envelope's data field
func (s *HTTPRecordStore) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet && path == schedulePath:
		return nil, ErrNoData
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, envelopeMessage(raw, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, envelopeMessage(raw, resp.StatusCode))
	}

	if len(raw) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s %s returned invalid JSON", method, path)
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return nil, nil
	}
	return []byte(data.Raw), nil
}

func envelopeMessage(raw []byte, status int) string {
	if gjson.ValidBytes(raw) {
		if msg := gjson.GetBytes(raw, "message").String(); msg != "" {
			return msg
		}
		if msg := gjson.GetBytes(raw, "error").String(); msg != "" {
			return msg
		}
	}
	return http.StatusText(status)
}
