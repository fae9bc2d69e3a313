// ABOUTME: API key provider comparing SHA-256 digests of presented keys.
// ABOUTME: Raw keys are never stored, compared, or logged.

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrKeyNotFound is returned by KeySource implementations when no active key
// matches a digest.
var ErrKeyNotFound = errors.New("api key not found")

// KeySource resolves a SHA-256 hex digest to the principal that owns the key.
// Implemented by the sqlite store and by StaticKeySource for config-supplied
// digest sets. Revoked keys must not resolve.
type KeySource interface {
	LookupKeyDigest(ctx context.Context, digest string) (principalID string, err error)
}

// StaticKeySource is a fixed digest → principal mapping, used when keys are
// provisioned through configuration rather than the store.
type StaticKeySource map[string]string

// LookupKeyDigest scans the set in constant time per entry.
func (s StaticKeySource) LookupKeyDigest(_ context.Context, digest string) (string, error) {
	digestBytes := []byte(digest)
	for candidate, principalID := range s {
		if subtle.ConstantTimeCompare([]byte(candidate), digestBytes) == 1 {
			return principalID, nil
		}
	}
	return "", ErrKeyNotFound
}

// APIKeyProvider authenticates opaque API keys by one-way hash comparison.
type APIKeyProvider struct {
	source KeySource
}

// NewAPIKeyProvider creates an API key provider backed by the given source.
func NewAPIKeyProvider(source KeySource) (*APIKeyProvider, error) {
	if source == nil {
		return nil, errors.New("apikey provider requires a key source")
	}
	return &APIKeyProvider{source: source}, nil
}

// Method returns MethodAPIKey.
func (p *APIKeyProvider) Method() Method { return MethodAPIKey }

// Authenticate hashes the presented key and looks the digest up in the source.
func (p *APIKeyProvider) Authenticate(ctx context.Context, credential string) Result {
	if credential == "" {
		return Rejected(ReasonMissingCredential)
	}

	principalID, err := p.source.LookupKeyDigest(ctx, HashAPIKey(credential))
	if err != nil {
		return Rejected(ReasonInvalidAPIKey)
	}

	return Authenticated(Identity{
		UserID: principalID,
		Method: MethodAPIKey,
		Claims: map[string]any{"sub": principalID},
	})
}

// HashAPIKey returns the SHA-256 hex digest of a raw API key. The same digest
// function is used at key creation time and at lookup time.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
