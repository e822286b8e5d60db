// Package postgres persists verification state in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE kyc_records (
//	    user_id     UUID PRIMARY KEY,
//	    tier        TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    country     TEXT NOT NULL,
//	    verified_at TIMESTAMPTZ,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX ON kyc_records (status, tier);
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) Get(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	query := `
		SELECT user_id, tier, status, country, verified_at, updated_at
		FROM kyc_records
		WHERE user_id = $1
	`
	var record models.VerificationRecord
	var uid uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&uid, &record.Tier, &record.Status, &record.Country, &record.VerifiedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query kyc record: %w", err)
	}
	record.UserID = id.UserID(uid)
	return &record, nil
}

func (s *RecordStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	query := `
		INSERT INTO kyc_records (user_id, tier, status, country, verified_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.UserID), record.Tier, record.Status, record.Country, record.VerifiedAt, record.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert kyc record: %w", err)
	}
	return nil
}

// CompareAndSwap relies on the WHERE clause matching the expected pair: zero
// rows affected on an existing record means another transition won. COALESCE
// keeps the stored verified_at when the transition does not set one, so a
// full-tier attempt passing through pending cannot erase the basic
// verification timestamp.
func (s *RecordStore) CompareAndSwap(ctx context.Context, userID id.UserID, expected, next ports.TierStatus, verifiedAt *time.Time, now time.Time) error {
	query := `
		UPDATE kyc_records
		SET tier = $1, status = $2, verified_at = COALESCE($3, verified_at), updated_at = $4
		WHERE user_id = $5 AND tier = $6 AND status = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		next.Tier, next.Status, verifiedAt, now,
		uuid.UUID(userID), expected.Tier, expected.Status,
	)
	if err != nil {
		return fmt.Errorf("transition kyc record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition kyc record: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, userID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RecordStore) ListByStatus(ctx context.Context, status models.Status) ([]models.VerificationRecord, error) {
	query := `
		SELECT user_id, tier, status, country, verified_at, updated_at
		FROM kyc_records
		WHERE status = $1 AND tier <> 'none'
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list kyc records: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationRecord
	for rows.Next() {
		var record models.VerificationRecord
		var uid uuid.UUID
		if err := rows.Scan(&uid, &record.Tier, &record.Status, &record.Country, &record.VerifiedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan kyc record: %w", err)
		}
		record.UserID = id.UserID(uid)
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *RecordStore) CountByTierStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT tier, status, COUNT(*) FROM kyc_records GROUP BY tier, status`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count kyc records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tier, status string
		var n int
		if err := rows.Scan(&tier, &status, &n); err != nil {
			return nil, fmt.Errorf("scan kyc record count: %w", err)
		}
		counts[tier+":"+status] = n
	}
	return counts, rows.Err()
}
