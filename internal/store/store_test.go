// ABOUTME: Tests for the SQLite store: API key lifecycle and audit trail.
// ABOUTME: Uses temp-dir databases; every test gets a fresh store.

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "authgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key, rawKey, err := s.CreateAPIKey(ctx, "user-42", "ci token")
	require.NoError(t, err)

	assert.NotEmpty(t, key.ID)
	assert.Equal(t, "user-42", key.PrincipalID)
	assert.Equal(t, "ci token", key.Name)
	assert.True(t, key.Active())
	assert.True(t, strings.HasPrefix(rawKey, KeyPrefix))

	// Stored digest matches the raw key's SHA-256
	sum := sha256.Sum256([]byte(rawKey))
	assert.Equal(t, hex.EncodeToString(sum[:]), key.KeyDigest)
	assert.NotContains(t, key.KeyDigest, rawKey)
}

func TestCreateAPIKey_RequiresPrincipal(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.CreateAPIKey(context.Background(), "  ", "name")
	assert.Error(t, err)
}

func TestGetAPIKeyByDigest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, rawKey, err := s.CreateAPIKey(ctx, "user-42", "ci token")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(rawKey))
	got, err := s.GetAPIKeyByDigest(ctx, hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "user-42", got.PrincipalID)

	_, err = s.GetAPIKeyByDigest(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key, rawKey, err := s.CreateAPIKey(ctx, "user-42", "ci token")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Revoked key no longer resolves by digest
	sum := sha256.Sum256([]byte(rawKey))
	_, err = s.GetAPIKeyByDigest(ctx, hex.EncodeToString(sum[:]))
	assert.ErrorIs(t, err, ErrNotFound)

	// But it is still listed, marked revoked
	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active())

	// Revoking again is a no-op
	assert.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Unknown ID is an error
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, "missing"), ErrNotFound)
}

func TestLookupKeyDigest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, rawKey, err := s.CreateAPIKey(ctx, "user-42", "ci token")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(rawKey))
	principalID, err := s.LookupKeyDigest(ctx, hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, "user-42", principalID)
}

func TestListAPIKeys_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.CreateAPIKey(ctx, "user-1", "first")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, _, err = s.CreateAPIKey(ctx, "user-2", "second")
	require.NoError(t, err)

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "second", keys[0].Name)
	assert.Equal(t, "first", keys[1].Name)
}

func TestRecordAndListAuthEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pid := "user-42"
	require.NoError(t, s.RecordAuthEvent(ctx, &AuthEvent{
		PrincipalID: &pid,
		Method:      "jwt",
		Outcome:     AuthAllowed,
	}))
	require.NoError(t, s.RecordAuthEvent(ctx, &AuthEvent{
		Method:  "jwt",
		Outcome: AuthRejected,
		Detail:  "invalid token",
	}))

	events, err := s.ListAuthEvents(ctx, AuthEventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Filter by outcome
	rejected := AuthRejected
	events, err = s.ListAuthEvents(ctx, AuthEventFilter{Outcome: &rejected})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].PrincipalID)
	assert.Equal(t, "invalid token", events[0].Detail)

	// Filter by principal
	events, err = s.ListAuthEvents(ctx, AuthEventFilter{PrincipalID: &pid})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AuthAllowed, events[0].Outcome)
}

func TestListAuthEvents_SinceAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &AuthEvent{Method: "jwt", Outcome: AuthAllowed, OccurredAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, s.RecordAuthEvent(ctx, old))
	require.NoError(t, s.RecordAuthEvent(ctx, &AuthEvent{Method: "jwt", Outcome: AuthAllowed}))

	since := time.Now().UTC().Add(-time.Minute)
	events, err := s.ListAuthEvents(ctx, AuthEventFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = s.ListAuthEvents(ctx, AuthEventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.CreateAPIKey(context.Background(), "user-42", "ephemeral")
	assert.NoError(t, err)
}
