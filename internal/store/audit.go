package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultListLimit = 50

// SafeModeChange is one recorded transition of the safe-mode switch.
type SafeModeChange struct {
	ID            int64     `json:"id" yaml:"id"`
	Enabled       bool      `json:"enabled" yaml:"enabled"`
	RateLimit     float64   `json:"rate_limit" yaml:"rate_limit"`
	PrevEnabled   bool      `json:"prev_enabled" yaml:"prev_enabled"`
	PrevRateLimit float64   `json:"prev_rate_limit" yaml:"prev_rate_limit"`
	Source        string    `json:"source" yaml:"source"`
	Actor         string    `json:"actor,omitempty" yaml:"actor,omitempty"`
	Reason        string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	ChangedAt     time.Time `json:"changed_at" yaml:"changed_at"`
}

// RecordSafeModeChange appends change to the audit log and returns its id.
func (s *Store) RecordSafeModeChange(ctx context.Context, change SafeModeChange) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	source := strings.TrimSpace(change.Source)
	if source == "" {
		return 0, errors.New("source is required")
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now()
	}

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO safe_mode_changes (
			enabled, rate_limit, prev_enabled, prev_rate_limit,
			source, actor, reason, request_id, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		boolToInt(change.Enabled), change.RateLimit,
		boolToInt(change.PrevEnabled), change.PrevRateLimit,
		source, nullString(change.Actor), nullString(change.Reason), nullString(change.RequestID),
		change.ChangedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record safe mode change: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record safe mode change: %w", err)
	}
	return id, nil
}

// ListSafeModeChanges returns the most recent changes first.
func (s *Store) ListSafeModeChanges(ctx context.Context, limit int) ([]SafeModeChange, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, enabled, rate_limit, prev_enabled, prev_rate_limit,
			source, actor, reason, request_id, changed_at
		FROM safe_mode_changes
		ORDER BY changed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list safe mode changes: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var changes []SafeModeChange
	for rows.Next() {
		var (
			change      SafeModeChange
			enabled     int
			prevEnabled int
			actor       sql.NullString
			reason      sql.NullString
			requestID   sql.NullString
			changedAt   int64
		)
		if err := rows.Scan(&change.ID, &enabled, &change.RateLimit, &prevEnabled, &change.PrevRateLimit,
			&change.Source, &actor, &reason, &requestID, &changedAt); err != nil {
			return nil, fmt.Errorf("scan safe mode change: %w", err)
		}
		change.Enabled = enabled != 0
		change.PrevEnabled = prevEnabled != 0
		change.Actor = actor.String
		change.Reason = reason.String
		change.RequestID = requestID.String
		change.ChangedAt = time.UnixMilli(changedAt).UTC()
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list safe mode changes: %w", err)
	}

	return changes, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
