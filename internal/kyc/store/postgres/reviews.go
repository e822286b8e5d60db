package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

// ReviewStore is append-only, like the audit ledger it accompanies.
//
// Schema:
//
//	CREATE TABLE kyc_reviews (
//	    id          BIGSERIAL PRIMARY KEY,
//	    user_id     UUID NOT NULL,
//	    reviewer_id UUID NOT NULL,
//	    tier        TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    notes       TEXT NOT NULL DEFAULT '',
//	    reviewed_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX ON kyc_reviews (user_id, reviewed_at DESC);
type ReviewStore struct {
	db *sql.DB
}

func NewReviewStore(db *sql.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Append(ctx context.Context, review models.Review) error {
	query := `
		INSERT INTO kyc_reviews (user_id, reviewer_id, tier, status, notes, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(review.UserID), uuid.UUID(review.ReviewerID),
		review.Tier, review.Status, review.Notes, review.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *ReviewStore) ByUser(ctx context.Context, userID id.UserID) ([]models.Review, error) {
	query := `
		SELECT user_id, reviewer_id, tier, status, notes, reviewed_at
		FROM kyc_reviews
		WHERE user_id = $1
		ORDER BY reviewed_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var review models.Review
		var uid, rid uuid.UUID
		if err := rows.Scan(&uid, &rid, &review.Tier, &review.Status, &review.Notes, &review.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		review.UserID = id.UserID(uid)
		review.ReviewerID = id.ReviewerID(rid)
		out = append(out, review)
	}
	return out, rows.Err()
}
