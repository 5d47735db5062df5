package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const sessionKey = "planner-session"

// session is what login leaves in the device KV
type session struct {
	UserID      string             `json:"user_id"`
	Email       string             `json:"email"`
	Token       *oauth2.Token      `json:"token"`
	LoginConfig models.LoginConfig `json:"login_config"`
	RedirectURI string             `json:"redirect_uri"`
}

func loadSession(ctx context.Context, kv storage.KV) (*session, error) {
	raw, err := kv.Get(ctx, sessionKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if s.UserID == "" || s.Token == nil {
		return nil, nil
	}
	return &s, nil
}

func saveSession(ctx context.Context, kv storage.KV, s *session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return kv.Put(ctx, sessionKey, raw)
}

func deleteSession(ctx context.Context, kv storage.KV) error {
	err := kv.Delete(ctx, sessionKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

// persistingTokenSource writes refreshed tokens back to the session
type persistingTokenSource struct {
	src    oauth2.TokenSource
	kv     storage.KV
	sess   *session
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(src oauth2.TokenSource, kv storage.KV, sess *session, logger *zap.Logger) *persistingTokenSource {
	return &persistingTokenSource{src: src, kv: kv, sess: sess, logger: logger, last: sess.Token.AccessToken}
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		updated := *p.sess
		updated.Token = tok
		if err := saveSession(context.Background(), p.kv, &updated); err != nil {
			p.logger.Warn("refreshed_token_not_saved", zap.Error(err))
		}
	}
	return tok, nil
}
