// ABOUTME: Tests for the dispatcher core flow and HTTP middleware.
// ABOUTME: Uses stub authenticators, resolvers, and audit sinks.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/authgate/internal/auth"
)

type stubAuthenticator struct {
	accept string
	userID string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, credential string) auth.Result {
	if credential == s.accept {
		return auth.Authenticated(auth.Identity{UserID: s.userID, Method: auth.MethodJWT})
	}
	return auth.Rejected(auth.ReasonInvalidToken)
}

type stubResolver struct {
	tokens map[string]string // resourceType → token
	calls  []string          // resourceType per call
}

func (s *stubResolver) Resolve(_ context.Context, userID, resourceType, credential string) (string, bool) {
	s.calls = append(s.calls, resourceType)
	tok, ok := s.tokens[resourceType]
	return tok, ok
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) RecordAuth(_ context.Context, principalID string, method auth.Method, allowed bool, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.events = append(r.events, "allow:"+principalID)
	} else {
		r.events = append(r.events, "reject:"+detail)
	}
}

func newTestDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	if cfg.Auth == nil {
		cfg.Auth = &stubAuthenticator{accept: "good-token", userID: "user-1"}
	}
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestNewRequiresAuthenticator(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher(t, Config{})

	var gotIdentity *auth.Identity
	err := d.Dispatch(context.Background(), "good-token", "tools/list", func(ctx context.Context, identity *auth.Identity, token *string) error {
		gotIdentity = identity
		assert.Nil(t, token)
		fromCtx := auth.FromContext(ctx)
		require.NotNil(t, fromCtx)
		assert.Equal(t, identity, fromCtx)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, gotIdentity)
	assert.Equal(t, "user-1", gotIdentity.UserID)
}

func TestDispatchRejection(t *testing.T) {
	d := newTestDispatcher(t, Config{})

	err := d.Dispatch(context.Background(), "bad-token", "tools/list", func(context.Context, *auth.Identity, *string) error {
		t.Fatal("handler must not run on rejection")
		return nil
	})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDispatchHandlerErrorPropagates(t *testing.T) {
	d := newTestDispatcher(t, Config{})

	boom := errors.New("boom")
	err := d.Dispatch(context.Background(), "good-token", "tools/list", func(context.Context, *auth.Identity, *string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestDispatchResolvesDownstreamToken(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{"github": "gh-tok"}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"tools/call": "github"},
	})

	err := d.Dispatch(context.Background(), "good-token", "tools/call", func(_ context.Context, _ *auth.Identity, token *string) error {
		require.NotNil(t, token)
		assert.Equal(t, "gh-tok", *token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, res.calls)
}

func TestDispatchMissingDownstreamTokenIsNotFailure(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"tools/call": "github"},
	})

	err := d.Dispatch(context.Background(), "good-token", "tools/call", func(_ context.Context, identity *auth.Identity, token *string) error {
		assert.Nil(t, token)
		assert.Equal(t, "user-1", identity.UserID)
		return nil
	})
	require.NoError(t, err)
}

func TestDispatchUnroutedOperationSkipsResolver(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{"github": "gh-tok"}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"tools/call": "github"},
	})

	err := d.Dispatch(context.Background(), "good-token", "tools/list", func(_ context.Context, _ *auth.Identity, token *string) error {
		assert.Nil(t, token)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, res.calls)
}

func TestDispatchPrefixRoute(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{"github": "gh-tok"}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"/api/github/": "github"},
	})

	err := d.Dispatch(context.Background(), "good-token", "/api/github/issues", func(_ context.Context, _ *auth.Identity, token *string) error {
		require.NotNil(t, token)
		return nil
	})
	require.NoError(t, err)
}

func TestDispatchLongestPrefixWins(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{
		"generic": "generic-tok",
		"github":  "gh-tok",
	}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes: map[string]string{
			"/api/":        "generic",
			"/api/github/": "github",
		},
	})

	// Map iteration order varies, so repeat to catch a short-prefix match
	// sneaking in ahead of the longer one.
	for i := 0; i < 20; i++ {
		err := d.Dispatch(context.Background(), "good-token", "/api/github/issues", func(_ context.Context, _ *auth.Identity, token *string) error {
			require.NotNil(t, token)
			assert.Equal(t, "gh-tok", *token)
			return nil
		})
		require.NoError(t, err)
	}
	for _, rt := range res.calls {
		assert.Equal(t, "github", rt)
	}
}

func TestDispatchAuditsOutcomes(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{Audit: sink})

	_ = d.Dispatch(context.Background(), "good-token", "op", func(context.Context, *auth.Identity, *string) error { return nil })
	_ = d.Dispatch(context.Background(), "bad-token", "op", func(context.Context, *auth.Identity, *string) error { return nil })

	assert.Equal(t, []string{"allow:user-1", "reject:" + auth.ReasonInvalidToken}, sink.events)
}

func TestMiddlewareSuccess(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{"github": "gh-tok"}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"/tools": "github"},
	})

	var sawIdentity *auth.Identity
	var sawToken string
	var sawTokenOK bool
	handler := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = auth.FromContext(r.Context())
		sawToken, sawTokenOK = DownstreamTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sawIdentity)
	assert.Equal(t, "user-1", sawIdentity.UserID)
	require.True(t, sawTokenOK)
	assert.Equal(t, "gh-tok", sawToken)
}

func TestMiddlewareRejectionIsGeneric(t *testing.T) {
	d := newTestDispatcher(t, Config{})

	handler := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"invalid token", "Bearer bad-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tools", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "authentication failed", body["error"])
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", ""},
		{"bearer", "Bearer tok123", "tok123"},
		{"case insensitive scheme", "bearer tok123", "tok123"},
		{"basic scheme", "Basic dXNlcjpwYXNz", ""},
		{"no token", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractBearerToken(req))
		})
	}
}

func TestDownstreamTokenFromContextEmpty(t *testing.T) {
	_, ok := DownstreamTokenFromContext(context.Background())
	assert.False(t, ok)
}
