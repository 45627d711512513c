// Package tokenstore keeps a short-lived in-memory view of the access
// tokens persisted in the token repository. The cache exists so a burst
// of proxied requests does not hit Redis (or worse, the backend refresh
// endpoint) once per request.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

// AcquireFunc produces a brand new access token for the given token ID
// when neither the cache nor the repository holds a usable one.
type AcquireFunc func(ctx context.Context, tokenID string) (models.AuthToken, error)

type cacheEntry struct {
	token     models.AuthToken
	fetchedAt time.Time
}

// TokenCache serves access tokens from memory as long as two conditions
// hold at once: the entry was fetched recently enough (the freshness
// window) and the token itself is not about to expire (the expiry
// buffer). Either condition failing on its own is enough to force a
// round trip.
//
// Two requests that miss the cache at the same time will both acquire a
// token and the last writer wins. Both tokens are valid, so the only
// cost of the race is a redundant acquisition, which is why there is no
// per-ID locking here.
type TokenCache struct {
	mu           sync.Mutex
	entries      map[string]cacheEntry
	tokenRepo    tokenRepo
	acquire      AcquireFunc
	freshness    time.Duration
	expiryBuffer time.Duration
}

type tokenRepo interface {
	models.AccessTokenGetter
	models.AccessTokenSetter
	models.AccessTokenRemover
}

type TokenCacheOption func(*TokenCache) error

func WithAuthConfig(authConfig config.AuthConfig) TokenCacheOption {
	return func(c *TokenCache) error {
		if err := authConfig.Validate(); err != nil {
			return err
		}
		c.freshness = authConfig.CacheFreshness()
		c.expiryBuffer = authConfig.ExpiryBuffer()
		return nil
	}
}

func WithTokenRepository(tokenRepo tokenRepo) TokenCacheOption {
	return func(c *TokenCache) error {
		c.tokenRepo = tokenRepo
		return nil
	}
}

func WithAcquirer(acquire AcquireFunc) TokenCacheOption {
	return func(c *TokenCache) error {
		c.acquire = acquire
		return nil
	}
}

func NewTokenCache(options ...TokenCacheOption) (*TokenCache, error) {
	cache := TokenCache{
		entries:      map[string]cacheEntry{},
		freshness:    models.DefaultCacheFreshness,
		expiryBuffer: models.DefaultExpiryBuffer,
	}
	for _, opt := range options {
		err := opt(&cache)
		if err != nil {
			return nil, err
		}
	}
	if cache.tokenRepo == nil {
		return nil, fmt.Errorf("the token repository is not initialized")
	}
	return &cache, nil
}

// Get returns a usable access token for the token ID, trying the cache,
// then the repository, then the acquirer, in that order.
func (c *TokenCache) Get(ctx context.Context, tokenID string) (models.AuthToken, error) {
	if token, ok := c.lookup(tokenID); ok {
		return token, nil
	}
	token, err := c.tokenRepo.GetAccessToken(ctx, tokenID)
	if err != nil && !errors.Is(err, gwerrors.ErrTokenNotFound) {
		return models.AuthToken{}, err
	}
	if err == nil && !token.ExpiresSoon(c.expiryBuffer) {
		c.store(token)
		return token, nil
	}
	if c.acquire == nil {
		return models.AuthToken{}, gwerrors.ErrTokenExpired
	}
	slog.Debug("TOKEN CACHE", "message", "acquiring a new access token", "tokenID", tokenID)
	token, err = c.acquire(ctx, tokenID)
	if err != nil {
		return models.AuthToken{}, err
	}
	if err := c.Put(ctx, token); err != nil {
		return models.AuthToken{}, err
	}
	return token, nil
}

// Put persists the token in the repository and promotes it to the cache.
func (c *TokenCache) Put(ctx context.Context, token models.AuthToken) error {
	if err := c.tokenRepo.SetAccessToken(ctx, token); err != nil {
		return err
	}
	c.store(token)
	return nil
}

// Clear drops the token from the cache and the repository. Used on
// logout and when the backend rejects a token the gateway thought was
// still good.
func (c *TokenCache) Clear(ctx context.Context, tokenID string) error {
	c.mu.Lock()
	delete(c.entries, tokenID)
	c.mu.Unlock()
	return c.tokenRepo.RemoveAccessToken(ctx, tokenID)
}

// ExpiringSoon lists the cached token IDs whose tokens fall inside the
// expiry buffer, for the background refresher to work through.
func (c *TokenCache) ExpiringSoon() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := []string{}
	for id, entry := range c.entries {
		if entry.token.ExpiresSoon(c.expiryBuffer) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *TokenCache) lookup(tokenID string) (models.AuthToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[tokenID]
	if !ok {
		return models.AuthToken{}, false
	}
	if time.Now().UTC().Sub(entry.fetchedAt) >= c.freshness {
		delete(c.entries, tokenID)
		return models.AuthToken{}, false
	}
	if entry.token.ExpiresSoon(c.expiryBuffer) {
		delete(c.entries, tokenID)
		return models.AuthToken{}, false
	}
	return entry.token, true
}

func (c *TokenCache) store(token models.AuthToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token.ID] = cacheEntry{token: token, fetchedAt: time.Now().UTC()}
}
