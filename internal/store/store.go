// ABOUTME: Store interfaces and entity types for API keys and auth audit events.
// ABOUTME: Defines the contract implemented by the SQLite store.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// APIKey represents a provisioned API key. The raw key is returned exactly
// once at creation time; only its SHA-256 hex digest is persisted.
type APIKey struct {
	ID          string
	PrincipalID string // user the key authenticates as
	Name        string // operator-facing label
	KeyDigest   string // SHA-256 hex digest of the raw key
	CreatedAt   time.Time
	RevokedAt   *time.Time // nil while the key is active
}

// Active reports whether the key has not been revoked.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}

// AuthOutcome classifies an authentication attempt for the audit trail.
type AuthOutcome string

const (
	AuthAllowed  AuthOutcome = "allowed"
	AuthRejected AuthOutcome = "rejected"
)

// AuthEvent is one audited authentication attempt.
type AuthEvent struct {
	ID          string
	OccurredAt  time.Time
	PrincipalID *string // nil when authentication failed before an identity existed
	Method      string  // provider method tag, empty when unknown
	Outcome     AuthOutcome
	Detail      string // log-safe context, never credential material
}

// AuthEventFilter narrows ListAuthEvents results.
type AuthEventFilter struct {
	Since       *time.Time
	PrincipalID *string
	Outcome     *AuthOutcome
	Limit       int // default 100, max 1000
}

// APIKeyStore manages provisioned API keys.
type APIKeyStore interface {
	// CreateAPIKey provisions a key for a principal and returns the record
	// plus the raw key. The raw key is not recoverable afterwards.
	CreateAPIKey(ctx context.Context, principalID, name string) (*APIKey, string, error)

	// GetAPIKeyByDigest returns the active key matching a SHA-256 hex digest.
	// Revoked keys return ErrNotFound.
	GetAPIKeyByDigest(ctx context.Context, digest string) (*APIKey, error)

	// LookupKeyDigest returns the principal that owns the active key with
	// this digest. Satisfies the auth package's KeySource.
	LookupKeyDigest(ctx context.Context, digest string) (string, error)

	// ListAPIKeys returns all keys, newest first, including revoked ones.
	ListAPIKeys(ctx context.Context) ([]*APIKey, error)

	// RevokeAPIKey marks a key revoked. Revoking an already-revoked key is a
	// no-op; an unknown ID returns ErrNotFound.
	RevokeAPIKey(ctx context.Context, id string) error
}

// AuditStore records and queries authentication attempts.
type AuditStore interface {
	RecordAuthEvent(ctx context.Context, e *AuthEvent) error
	ListAuthEvents(ctx context.Context, filter AuthEventFilter) ([]*AuthEvent, error)
}

// Store is the full persistence contract.
type Store interface {
	APIKeyStore
	AuditStore
	Close() error
}
