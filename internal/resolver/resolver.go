// ABOUTME: Downstream token resolver fetching per-user credentials from the platform.
// ABOUTME: Caches real tokens and confirmed-absent results; transient failures retry.

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/authgate/internal/cache"
)

const (
	// DefaultCacheTTL is how long resolved tokens (and confirmed-absent
	// results) are remembered.
	DefaultCacheTTL = 5 * time.Minute

	// defaultTimeout bounds the credential-service round-trip.
	defaultTimeout = 2 * time.Second

	// maxResponseBodySize caps how much of a credential response is read (1MB).
	maxResponseBodySize = 1 << 20

	// maxCachedTokens bounds the token cache.
	maxCachedTokens = 10000
)

// Config configures a Resolver.
type Config struct {
	// PlatformURL is the base URL of the credential-issuing service.
	PlatformURL string

	// Timeout bounds each fetch. Default 2s.
	Timeout time.Duration

	// CacheTTL is how long results are cached. Default 5m.
	CacheTTL time.Duration

	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// credentialResponse is the platform's response body for a credential fetch.
type credentialResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Resolver obtains downstream access tokens for authenticated users from the
// platform's credential service, forwarding the user's own verified
// credential so the platform can independently check who is asking.
//
// The cache distinguishes two kinds of "no token": a 404 from the platform
// means the user has not configured the resource type, which is a stable fact
// and is cached; any other failure is transient and is retried on the next
// call.
type Resolver struct {
	platformURL string
	client      *http.Client
	cache       *cache.Cache[*string]
	logger      *slog.Logger
}

// New creates a resolver for the given platform URL.
func New(cfg Config) (*Resolver, error) {
	if cfg.PlatformURL == "" {
		return nil, errors.New("resolver requires a platform URL")
	}
	u, err := url.Parse(cfg.PlatformURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("resolver: invalid platform URL %q", cfg.PlatformURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		platformURL: strings.TrimSuffix(cfg.PlatformURL, "/"),
		client:      client,
		cache:       cache.New[*string](ttl, maxCachedTokens),
		logger:      logger.With("component", "resolver"),
	}, nil
}

// Resolve returns the downstream token for (userID, resourceType), fetching
// it from the platform on a cache miss. The credential is the user's own
// verified bearer credential, forwarded upstream. Returns ok=false when the
// user has no token for the resource type or the platform is unreachable;
// callers decide whether they can proceed without one.
func (r *Resolver) Resolve(ctx context.Context, userID, resourceType, credential string) (token string, ok bool) {
	key := cacheKey(userID, resourceType)
	if cached, hit := r.cache.Get(key); hit {
		if cached == nil {
			return "", false
		}
		return *cached, true
	}

	return r.fetch(ctx, key, userID, resourceType, credential)
}

// ClearCache evicts the cached token for one (userID, resourceType) pair.
// Used when credentials are known to have been rotated upstream before the
// TTL would expire.
func (r *Resolver) ClearCache(userID, resourceType string) {
	r.cache.Invalidate(cacheKey(userID, resourceType))
}

// Close stops the resolver's cache sweeper.
func (r *Resolver) Close() {
	r.cache.Close()
}

// fetch performs the platform round-trip for a cache miss. All failures are
// converted to an absent token; only a definitive 404 or a real token is
// cached.
func (r *Resolver) fetch(ctx context.Context, key, userID, resourceType, credential string) (string, bool) {
	endpoint := r.platformURL + "/api/credentials/" + url.PathEscape(resourceType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.logger.Error("building credential request", "error", err, "resource_type", resourceType)
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("X-User-ID", userID)

	resp, err := r.client.Do(req)
	if err != nil {
		// Network failures and timeouts are transient: not cached, so the
		// next call retries.
		r.logger.Error("credential fetch failed", "error", err, "user_id", userID, "resource_type", resourceType)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The user has not configured this resource type. A stable fact,
		// cached to avoid hammering the platform for known-absent config.
		r.cache.Set(key, nil)
		r.logger.Debug("no credentials configured", "user_id", userID, "resource_type", resourceType)
		return "", false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Error("credential service error",
			"status", resp.StatusCode,
			"user_id", userID,
			"resource_type", resourceType,
		)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		r.logger.Error("reading credential response", "error", err, "resource_type", resourceType)
		return "", false
	}

	var cred credentialResponse
	if err := json.Unmarshal(body, &cred); err != nil {
		r.logger.Error("parsing credential response", "error", err, "resource_type", resourceType)
		return "", false
	}
	if cred.AccessToken == "" {
		// A 2xx without a token is a malformed platform response, treated
		// like any other transient failure.
		r.logger.Error("credential response missing access_token", "user_id", userID, "resource_type", resourceType)
		return "", false
	}

	tok := cred.AccessToken
	r.cache.Set(key, &tok)
	return tok, true
}

// cacheKey builds the composite cache key. NUL cannot appear in either part,
// so the join is unambiguous.
func cacheKey(userID, resourceType string) string {
	return userID + "\x00" + resourceType
}
