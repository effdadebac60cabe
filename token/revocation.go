package token

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const revokedCleanupInterval = 10 * time.Minute

// RevokedTokenCache interface for managing revoked access tokens
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
}

// InMemoryRevokedTokenCache keeps revoked ids until the token would have expired anyway.
type InMemoryRevokedTokenCache struct {
	revoked *cache.Cache
	nowFunc func() time.Time
}

type RevokedCacheOption func(*InMemoryRevokedTokenCache)

// WithRevokedNowFunc sets the clock Add measures the remaining lifetime against. It
// must be the clock the tokens were issued with.
func WithRevokedNowFunc(f func() time.Time) RevokedCacheOption {
	return func(c *InMemoryRevokedTokenCache) {
		if f != nil {
			c.nowFunc = f
		}
	}
}

func NewRevokedTokenCache(opts ...RevokedCacheOption) *InMemoryRevokedTokenCache {
	c := &InMemoryRevokedTokenCache{
		revoked: cache.New(cache.NoExpiration, revokedCleanupInterval),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	ttl := cache.NoExpiration
	if !exp.IsZero() {
		ttl = exp.Sub(c.nowFunc())
		if ttl <= 0 {
			return nil // already expired, nothing to remember
		}
	}
	c.revoked.Set(jti, struct{}{}, ttl)
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	_, found := c.revoked.Get(jti)
	return found
}
