// ABOUTME: Auth audit trail persistence for security monitoring.
// ABOUTME: Records authentication outcomes; detail strings never carry credentials.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// RecordAuthEvent appends one authentication attempt to the audit trail.
// Generates ID and OccurredAt if not set.
func (s *SQLiteStore) RecordAuthEvent(ctx context.Context, e *AuthEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var principalID string
	if e.PrincipalID != nil {
		principalID = *e.PrincipalID
	}

	query := `
		INSERT INTO auth_audit (id, occurred_at, principal_id, method, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.OccurredAt.Format(time.RFC3339Nano),
		nullString(principalID),
		e.Method,
		string(e.Outcome),
		nullString(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("inserting auth event: %w", err)
	}
	return nil
}

// ListAuthEvents returns audited attempts matching the filter, newest first.
func (s *SQLiteStore) ListAuthEvents(ctx context.Context, filter AuthEventFilter) ([]*AuthEvent, error) {
	var conditions []string
	var args []any

	if filter.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.PrincipalID != nil {
		conditions = append(conditions, "principal_id = ?")
		args = append(args, *filter.PrincipalID)
	}
	if filter.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*filter.Outcome))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	query := "SELECT id, occurred_at, principal_id, method, outcome, detail FROM auth_audit"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing auth events: %w", err)
	}
	defer rows.Close()

	var events []*AuthEvent
	for rows.Next() {
		var e AuthEvent
		var occurredAt string
		var principalID, detail sql.NullString

		if err := rows.Scan(&e.ID, &occurredAt, &principalID, &e.Method, &e.Outcome, &detail); err != nil {
			return nil, fmt.Errorf("scanning auth event: %w", err)
		}

		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		e.OccurredAt = t

		if principalID.Valid {
			pid := principalID.String
			e.PrincipalID = &pid
		}
		if detail.Valid {
			e.Detail = detail.String
		}

		events = append(events, &e)
	}
	return events, rows.Err()
}
