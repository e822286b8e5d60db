package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kycgate/internal/ratelimit"
)

// PostgresStore records attempts in a shared table so every node enforces the
// same windows. Window cutoffs use the database clock, not the caller's, so
// skewed application clocks cannot widen a window.
//
// Schema:
//
//	CREATE TABLE rate_limit_attempts (
//	    id           BIGSERIAL PRIMARY KEY,
//	    window_key   TEXT        NOT NULL,
//	    attempted_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX idx_rate_limit_attempts_key_time
//	    ON rate_limit_attempts (window_key, attempted_at DESC);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CheckAndAppend counts both windows and conditionally inserts inside one
// transaction holding a per-key advisory lock. The lock serializes racing
// calls for the same key, so two of them can never both take the last slot.
func (s *PostgresStore) CheckAndAppend(ctx context.Context, key string, _ time.Time, limits ratelimit.Limits) (allowed bool, hourly, daily int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, 0, 0, fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return false, 0, 0, fmt.Errorf("lock window key: %w", err)
	}

	const countQuery = `
		SELECT
		    COUNT(*) FILTER (WHERE attempted_at > now() - interval '1 hour'),
		    COUNT(*)
		FROM rate_limit_attempts
		WHERE window_key = $1
		  AND attempted_at > now() - interval '24 hours'`
	if err := tx.QueryRow(ctx, countQuery, key).Scan(&hourly, &daily); err != nil {
		return false, 0, 0, fmt.Errorf("count attempts: %w", err)
	}

	if hourly >= limits.HourlyCap || daily >= limits.DailyCap {
		return false, hourly, daily, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO rate_limit_attempts (window_key) VALUES ($1)`, key); err != nil {
		return false, 0, 0, fmt.Errorf("record attempt: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("commit attempt: %w", err)
	}
	return true, hourly + 1, daily + 1, nil
}

func (s *PostgresStore) OldestInWindow(ctx context.Context, key string, _ time.Time, window time.Duration) (time.Time, error) {
	const query = `
		SELECT attempted_at
		FROM rate_limit_attempts
		WHERE window_key = $1
		  AND attempted_at > now() - make_interval(secs => $2)
		ORDER BY attempted_at ASC
		LIMIT 1`

	var oldest time.Time
	err := s.pool.QueryRow(ctx, query, key, window.Seconds()).Scan(&oldest)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query oldest attempt: %w", err)
	}
	return oldest, nil
}

func (s *PostgresStore) Prune(ctx context.Context, before time.Time) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_attempts WHERE attempted_at < $1`, before)
	if err != nil {
		return fmt.Errorf("prune attempts: %w", err)
	}
	return nil
}
