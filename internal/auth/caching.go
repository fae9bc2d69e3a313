// ABOUTME: Caching decorator that remembers successful authentications by credential.
// ABOUTME: Rejections are never cached so transient verification fixes apply immediately.

package auth

import (
	"context"
	"time"

	"github.com/2389/authgate/internal/cache"
)

// DefaultResultCacheTTL is how long a successful authentication is remembered.
const DefaultResultCacheTTL = 60 * time.Second

// maxCachedResults bounds the result cache so an attacker cycling credentials
// cannot grow it without limit.
const maxCachedResults = 10000

// cachingProvider wraps a Provider with a success-only result cache keyed by
// the raw credential. The cache is owned by this wrapper alone.
type cachingProvider struct {
	inner Provider
	cache *cache.Cache[Result]
}

// WithCache wraps a provider so repeated authentications of the same
// credential skip re-verification until the TTL elapses. A ttl <= 0 uses
// DefaultResultCacheTTL. Close the returned provider to stop its cache.
func WithCache(p Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &cachingProvider{
		inner: p,
		cache: cache.New[Result](ttl, maxCachedResults),
	}
}

func (c *cachingProvider) Method() Method { return c.inner.Method() }

// Authenticate consults the cache before the wrapped provider. An empty
// credential is rejected before any cache lookup. Only successful results are
// stored; failures always re-verify.
func (c *cachingProvider) Authenticate(ctx context.Context, credential string) Result {
	if credential == "" {
		return Rejected(ReasonMissingCredential)
	}

	if res, ok := c.cache.Get(credential); ok {
		return res
	}

	res := c.inner.Authenticate(ctx, credential)
	if res.OK() {
		c.cache.Set(credential, res)
	}
	return res
}

// Close stops the cache sweeper and closes the wrapped provider if it is
// itself closable.
func (c *cachingProvider) Close() {
	c.cache.Close()
	if closer, ok := c.inner.(interface{ Close() }); ok {
		closer.Close()
	}
}
