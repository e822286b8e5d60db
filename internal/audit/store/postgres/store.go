// Package postgres persists the audit ledger in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE kyc_audit_entries (
//	    id         UUID PRIMARY KEY,
//	    user_id    UUID,
//	    action     TEXT NOT NULL,
//	    details    JSONB,
//	    timestamp  TIMESTAMPTZ NOT NULL,
//	    ip_address TEXT NOT NULL DEFAULT '',
//	    user_agent TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX ON kyc_audit_entries (user_id, timestamp DESC);
//	CREATE INDEX ON kyc_audit_entries (timestamp);
//
// The table is append-only; no UPDATE or DELETE statements exist in this
// package.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/audit"
	id "kycgate/pkg/domain"
)

// Store implements audit.Store on database/sql.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	var userID *uuid.UUID
	if !entry.UserID.IsNil() {
		uid := uuid.UUID(entry.UserID)
		userID = &uid
	}

	query := `
		INSERT INTO kyc_audit_entries (id, user_id, action, details, timestamp, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		userID,
		entry.Action,
		details,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) TrailByUser(ctx context.Context, userID id.UserID, offset, limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, user_id, action, details, timestamp, ip_address, user_agent
		FROM kyc_audit_entries
		WHERE user_id = $1
		ORDER BY timestamp DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			userIDNull *uuid.UUID
			details    []byte
		)
		if err := rows.Scan(&entry.ID, &userIDNull, &entry.Action, &details,
			&entry.Timestamp, &entry.IPAddress, &entry.UserAgent); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if userIDNull != nil {
			entry.UserID = id.UserID(*userIDNull)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *Store) Aggregate(ctx context.Context, start, end time.Time) (*audit.Report, error) {
	report := &audit.Report{
		Start:        start,
		End:          end,
		ActionCounts: make(map[string]int),
	}

	query := `
		SELECT action, COUNT(*)
		FROM kyc_audit_entries
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY action
	`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		report.ActionCounts[action] = count
		report.TotalActions += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}

	uniqQuery := `
		SELECT COUNT(DISTINCT user_id)
		FROM kyc_audit_entries
		WHERE timestamp >= $1 AND timestamp <= $2 AND user_id IS NOT NULL
	`
	if err := s.db.QueryRowContext(ctx, uniqQuery, start, end).Scan(&report.UniqueUserCount); err != nil {
		return nil, fmt.Errorf("count unique users: %w", err)
	}

	return report, nil
}
