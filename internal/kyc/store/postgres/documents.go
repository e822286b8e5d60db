package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// DocumentStore keeps every submitted document. Rows are never deleted;
// resubmission flips superseded on the previous active rows of the same
// tier and document type.
//
// Schema:
//
//	CREATE TABLE kyc_documents (
//	    id          UUID PRIMARY KEY,
//	    user_id     UUID NOT NULL,
//	    doc_type    TEXT NOT NULL,
//	    tier        TEXT NOT NULL,
//	    payload     TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    superseded  BOOLEAN NOT NULL DEFAULT false,
//	    verified_at TIMESTAMPTZ,
//	    reviewer_id UUID,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX ON kyc_documents (user_id) WHERE NOT superseded;
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Save(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO kyc_documents (id, user_id, doc_type, tier, payload, status, superseded, verified_at, reviewer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var reviewer *uuid.UUID
	if doc.ReviewerID != nil {
		rid := uuid.UUID(*doc.ReviewerID)
		reviewer = &rid
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(doc.ID), uuid.UUID(doc.UserID), doc.Type, doc.Tier, doc.Payload,
		doc.Status, doc.Superseded, doc.VerifiedAt, reviewer, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) SupersedeActive(ctx context.Context, userID id.UserID, tier models.Tier, docType models.DocumentType) error {
	query := `
		UPDATE kyc_documents
		SET superseded = true
		WHERE user_id = $1 AND tier = $2 AND doc_type = $3 AND NOT superseded
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), tier, docType); err != nil {
		return fmt.Errorf("supersede documents: %w", err)
	}
	return nil
}

func (s *DocumentStore) ActiveByUser(ctx context.Context, userID id.UserID) ([]models.Document, error) {
	query := `
		SELECT id, user_id, doc_type, tier, payload, status, superseded, verified_at, reviewer_id, created_at
		FROM kyc_documents
		WHERE user_id = $1 AND NOT superseded
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var doc models.Document
		var docID, uid uuid.UUID
		var reviewer *uuid.UUID
		if err := rows.Scan(&docID, &uid, &doc.Type, &doc.Tier, &doc.Payload,
			&doc.Status, &doc.Superseded, &doc.VerifiedAt, &reviewer, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.ID = id.DocumentID(docID)
		doc.UserID = id.UserID(uid)
		if reviewer != nil {
			rid := id.ReviewerID(*reviewer)
			doc.ReviewerID = &rid
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *DocumentStore) MarkStatus(ctx context.Context, docID id.DocumentID, status models.Status, verifiedAt *time.Time, reviewerID *id.ReviewerID) error {
	query := `
		UPDATE kyc_documents
		SET status = $1, verified_at = $2, reviewer_id = $3
		WHERE id = $4
	`
	var reviewer *uuid.UUID
	if reviewerID != nil {
		rid := uuid.UUID(*reviewerID)
		reviewer = &rid
	}
	res, err := s.db.ExecContext(ctx, query, status, verifiedAt, reviewer, uuid.UUID(docID))
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
