// ABOUTME: API key persistence: creation, digest lookup, listing, revocation.
// ABOUTME: Raw keys exist only in the CreateAPIKey return value, never in the database.

package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix marks raw API keys so dispatch-mode chains can route them by
// format. It carries no secret value.
const KeyPrefix = "ak_"

// rawKeyBytes is the entropy of a generated key (32 bytes, hex-encoded).
const rawKeyBytes = 32

// CreateAPIKey provisions a new key for a principal. The returned raw key is
// shown to the operator once; only its digest is stored.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, principalID, name string) (*APIKey, string, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, "", errors.New("principal_id is required")
	}

	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generating key material: %w", err)
	}
	rawKey := KeyPrefix + hex.EncodeToString(buf)
	digest := sha256.Sum256([]byte(rawKey))

	key := &APIKey{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		Name:        name,
		KeyDigest:   hex.EncodeToString(digest[:]),
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO api_keys (id, principal_id, name, key_digest, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`
	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.PrincipalID,
		key.Name,
		key.KeyDigest,
		key.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, "", fmt.Errorf("inserting api key: %w", err)
	}

	s.logger.Info("created API key", "id", key.ID, "principal_id", key.PrincipalID, "name", key.Name)
	return key, rawKey, nil
}

// GetAPIKeyByDigest returns the active key for a digest, or ErrNotFound.
func (s *SQLiteStore) GetAPIKeyByDigest(ctx context.Context, digest string) (*APIKey, error) {
	query := `
		SELECT id, principal_id, name, key_digest, created_at, revoked_at
		FROM api_keys
		WHERE key_digest = ? AND revoked_at IS NULL
	`
	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	return key, nil
}

// LookupKeyDigest adapts the store to the auth package's KeySource interface.
func (s *SQLiteStore) LookupKeyDigest(ctx context.Context, digest string) (string, error) {
	key, err := s.GetAPIKeyByDigest(ctx, digest)
	if err != nil {
		return "", err
	}
	return key.PrincipalID, nil
}

// ListAPIKeys returns all keys, newest first.
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]*APIKey, error) {
	query := `
		SELECT id, principal_id, name, key_digest, created_at, revoked_at
		FROM api_keys
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey marks a key revoked.
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking api key: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	query := `UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`
	_, err = s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	s.logger.Info("revoked API key", "id", id)
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAPIKey reads one api_keys row.
func scanAPIKey(row rowScanner) (*APIKey, error) {
	var key APIKey
	var createdAt string
	var revokedAt sql.NullString

	if err := row.Scan(&key.ID, &key.PrincipalID, &key.Name, &key.KeyDigest, &createdAt, &revokedAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	key.CreatedAt = t

	if revokedAt.Valid {
		rt, err := time.Parse(time.RFC3339Nano, revokedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		key.RevokedAt = &rt
	}

	return &key, nil
}
