// ABOUTME: Tests for provider chains in both try-in-order and format-dispatch modes.
// ABOUTME: Covers ordering invariants and the generic all-failed rejection.

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns a fixed outcome and records whether it was called.
type scriptedProvider struct {
	method Method
	accept bool
	userID string
	called bool
}

func (s *scriptedProvider) Method() Method { return s.method }

func (s *scriptedProvider) Authenticate(_ context.Context, _ string) Result {
	s.called = true
	if s.accept {
		return Authenticated(Identity{UserID: s.userID, Method: s.method})
	}
	return Rejected(ReasonInvalidToken)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	a := &scriptedProvider{method: MethodJWT, accept: false}
	b := &scriptedProvider{method: MethodAPIKey, accept: true, userID: "u2"}
	c := &scriptedProvider{method: MethodOAuth, accept: true, userID: "u3"}

	chain, err := NewChain(ModeChain, []Provider{a, b, c})
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "cred")
	require.True(t, res.OK())
	assert.Equal(t, "u2", res.Identity.UserID)
	assert.True(t, a.called, "provider a should have been tried first")
	assert.True(t, b.called)
	assert.False(t, c.called, "first success must short-circuit")
}

func TestChain_AllReject(t *testing.T) {
	a := &scriptedProvider{method: MethodJWT, accept: false}
	b := &scriptedProvider{method: MethodAPIKey, accept: false}

	chain, err := NewChain(ModeChain, []Provider{a, b})
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "cred")
	assert.False(t, res.OK())
	assert.Equal(t, ReasonAllFailed, res.Reason)
}

func TestChain_EmptyCredential(t *testing.T) {
	a := &scriptedProvider{method: MethodEnv, accept: true, userID: "dev"}
	chain, err := NewChain(ModeChain, []Provider{a})
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "")
	assert.False(t, res.OK())
	assert.Equal(t, ReasonMissingCredential, res.Reason)
	assert.False(t, a.called)
}

func TestNewChain_EnvMustBeLast(t *testing.T) {
	env := &scriptedProvider{method: MethodEnv, accept: true, userID: "dev"}
	jwtP := &scriptedProvider{method: MethodJWT, accept: false}

	_, err := NewChain(ModeChain, []Provider{env, jwtP})
	assert.Error(t, err, "env provider before a verifying provider must be rejected")

	_, err = NewChain(ModeChain, []Provider{jwtP, env})
	assert.NoError(t, err, "env provider in last position is allowed")
}

func TestNewChain_Validation(t *testing.T) {
	_, err := NewChain(ModeChain, nil)
	assert.Error(t, err)

	_, err = NewChain(Mode("bogus"), []Provider{&scriptedProvider{method: MethodJWT}})
	assert.Error(t, err)
}

func TestChain_DispatchJWTShape(t *testing.T) {
	jwtP := &scriptedProvider{method: MethodJWT, accept: true, userID: "jwt-user"}
	keyP := &scriptedProvider{method: MethodAPIKey, accept: true, userID: "key-user"}
	oauthP := &scriptedProvider{method: MethodOAuth, accept: true, userID: "oauth-user"}

	chain, err := NewChain(ModeDispatch, []Provider{jwtP, keyP, oauthP}, WithAPIKeyPrefix("ak_"))
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "eyJhbGciOi.eyJzdWIiOi.c2ln")
	require.True(t, res.OK())
	assert.Equal(t, "jwt-user", res.Identity.UserID)
	assert.False(t, keyP.called)
	assert.False(t, oauthP.called)
}

func TestChain_DispatchAPIKeyPrefix(t *testing.T) {
	jwtP := &scriptedProvider{method: MethodJWT, accept: true, userID: "jwt-user"}
	keyP := &scriptedProvider{method: MethodAPIKey, accept: true, userID: "key-user"}

	chain, err := NewChain(ModeDispatch, []Provider{jwtP, keyP}, WithAPIKeyPrefix("ak_"))
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "ak_12345")
	require.True(t, res.OK())
	assert.Equal(t, "key-user", res.Identity.UserID)
	assert.False(t, jwtP.called)
}

func TestChain_DispatchDefaultsToOAuth(t *testing.T) {
	jwtP := &scriptedProvider{method: MethodJWT, accept: true, userID: "jwt-user"}
	oauthP := &scriptedProvider{method: MethodOAuth, accept: true, userID: "oauth-user"}

	chain, err := NewChain(ModeDispatch, []Provider{jwtP, oauthP})
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "opaque-access-token")
	require.True(t, res.OK())
	assert.Equal(t, "oauth-user", res.Identity.UserID)
	assert.False(t, jwtP.called)
}

func TestChain_DispatchNoFallthrough(t *testing.T) {
	// In dispatch mode a rejection is final: no other provider is consulted.
	jwtP := &scriptedProvider{method: MethodJWT, accept: false}
	oauthP := &scriptedProvider{method: MethodOAuth, accept: true, userID: "oauth-user"}

	chain, err := NewChain(ModeDispatch, []Provider{jwtP, oauthP})
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "aaa.bbb.ccc")
	assert.False(t, res.OK())
	assert.Equal(t, ReasonAllFailed, res.Reason)
	assert.False(t, oauthP.called)
}

func TestChain_DispatchNoMatchingProvider(t *testing.T) {
	keyP := &scriptedProvider{method: MethodAPIKey, accept: true, userID: "key-user"}

	chain, err := NewChain(ModeDispatch, []Provider{keyP}, WithAPIKeyPrefix("ak_"))
	require.NoError(t, err)

	res := chain.Authenticate(context.Background(), "aaa.bbb.ccc")
	assert.False(t, res.OK())
}

func TestIdentityContext_RoundTrip(t *testing.T) {
	id := &Identity{UserID: "user-42", Method: MethodJWT}
	ctx := WithIdentity(context.Background(), id)

	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "user-42", got.UserID)

	assert.Nil(t, FromContext(context.Background()))
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
