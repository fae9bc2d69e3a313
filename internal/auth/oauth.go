// ABOUTME: OAuth provider that validates access tokens against a userinfo endpoint.
// ABOUTME: The only provider variant that networks during authentication.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultOAuthTimeout bounds the userinfo round-trip. Userinfo lookups sit
	// on the request path, so the timeout is short.
	defaultOAuthTimeout = 2 * time.Second

	// maxUserinfoBodySize caps how much of a userinfo response is read (1MB).
	maxUserinfoBodySize = 1 << 20
)

// OAuthConfig configures an OAuthProvider.
type OAuthConfig struct {
	UserinfoEndpoint string        // required; must be an absolute URL
	Timeout          time.Duration // default 2s
	HTTPClient       *http.Client  // optional, for tests
	Logger           *slog.Logger  // optional
}

// OAuthProvider treats the credential as an OAuth access token and asks the
// issuer's userinfo endpoint whether it is live, mapping "sub" (or "id") to
// the user ID.
type OAuthProvider struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewOAuthProvider creates an OAuth provider from the given config.
func NewOAuthProvider(cfg OAuthConfig) (*OAuthProvider, error) {
	if cfg.UserinfoEndpoint == "" {
		return nil, errors.New("oauth provider requires a userinfo endpoint")
	}
	u, err := url.Parse(cfg.UserinfoEndpoint)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("oauth provider: invalid userinfo endpoint %q", cfg.UserinfoEndpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOAuthTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OAuthProvider{
		endpoint: cfg.UserinfoEndpoint,
		client:   client,
		logger:   logger.With("component", "oauth-provider"),
	}, nil
}

// Method returns MethodOAuth.
func (p *OAuthProvider) Method() Method { return MethodOAuth }

// Authenticate calls the userinfo endpoint with the credential as a bearer
// token. Any network failure, timeout, or non-2xx response is a rejection.
func (p *OAuthProvider) Authenticate(ctx context.Context, credential string) Result {
	if credential == "" {
		return Rejected(ReasonMissingCredential)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return Rejected(ReasonInvalidToken)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("userinfo request failed", "error", err, "token_prefix", credentialPrefix(credential))
		return Rejected(ReasonInvalidToken)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Rejected(ReasonInvalidToken)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserinfoBodySize))
	if err != nil {
		p.logger.Warn("reading userinfo response", "error", err)
		return Rejected(ReasonInvalidToken)
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		p.logger.Warn("parsing userinfo response", "error", err)
		return Rejected(ReasonInvalidToken)
	}

	userID := stringClaim(claims, "sub")
	if userID == "" {
		userID = stringClaim(claims, "id")
	}
	if userID == "" {
		return Rejected(ReasonInvalidToken)
	}

	return Authenticated(Identity{
		UserID: userID,
		Method: MethodOAuth,
		Claims: claims,
	})
}

// stringClaim extracts a non-empty string field from a claims map.
func stringClaim(claims map[string]any, key string) string {
	v, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return v
}
