package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

type cachedSet struct {
	keys    jwk.Set
	expires time.Time
}

// JWKSManager fetches key sets and caches them per URL
type JWKSManager struct {
	mu     sync.RWMutex
	cache  map[string]cachedSet
	ttl    time.Duration
	client *http.Client
}

// NewJWKSManager creates a new JWKS manager caching sets for ttl
func NewJWKSManager(ttl time.Duration) *JWKSManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWKSManager{
		cache:  make(map[string]cachedSet),
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetJWKS retrieves the key set at jwksURL, from cache when fresh
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, ok := m.cache[jwksURL]
	m.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.keys, nil
	}

	keys, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(m.client))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.cache[jwksURL] = cachedSet{keys: keys, expires: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return keys, nil
}

// Invalidate drops the cached set for jwksURL, forcing a refetch after key rotation
func (m *JWKSManager) Invalidate(jwksURL string) {
	m.mu.Lock()
	delete(m.cache, jwksURL)
	m.mu.Unlock()
}
