package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"kycgate/internal/kyc/models"
	"kycgate/pkg/platform/sentinel"
)

// TierConfigStore reads the per-country verification policies.
//
// Schema:
//
//	CREATE TABLE kyc_tier_configs (
//	    country        TEXT NOT NULL,
//	    tier           TEXT NOT NULL,
//	    required_docs  TEXT[] NOT NULL,
//	    provider       TEXT NOT NULL,
//	    min_confidence DOUBLE PRECISION NOT NULL,
//	    active         BOOLEAN NOT NULL DEFAULT true,
//	    PRIMARY KEY (country, tier)
//	);
type TierConfigStore struct {
	db *sql.DB
}

func NewTierConfigStore(db *sql.DB) *TierConfigStore {
	return &TierConfigStore{db: db}
}

func (s *TierConfigStore) Get(ctx context.Context, country string, tier models.Tier) (*models.TierConfig, error) {
	query := `
		SELECT country, tier, required_docs, provider, min_confidence, active
		FROM kyc_tier_configs
		WHERE country = $1 AND tier = $2 AND active
	`
	var config models.TierConfig
	var docs pq.StringArray
	err := s.db.QueryRowContext(ctx, query, strings.ToUpper(country), tier).Scan(
		&config.Country, &config.Tier, &docs, &config.Provider, &config.MinConfidence, &config.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tier config: %w", err)
	}
	config.RequiredDocuments = toDocumentTypes(docs)
	return &config, nil
}

func (s *TierConfigStore) Upsert(ctx context.Context, config models.TierConfig) error {
	query := `
		INSERT INTO kyc_tier_configs (country, tier, required_docs, provider, min_confidence, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (country, tier) DO UPDATE
		SET required_docs = EXCLUDED.required_docs,
		    provider = EXCLUDED.provider,
		    min_confidence = EXCLUDED.min_confidence,
		    active = EXCLUDED.active
	`
	docs := make(pq.StringArray, len(config.RequiredDocuments))
	for i, d := range config.RequiredDocuments {
		docs[i] = d.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		strings.ToUpper(config.Country), config.Tier, docs, config.Provider, config.MinConfidence, config.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert tier config: %w", err)
	}
	return nil
}

func (s *TierConfigStore) ListActive(ctx context.Context) ([]models.TierConfig, error) {
	query := `
		SELECT country, tier, required_docs, provider, min_confidence, active
		FROM kyc_tier_configs
		WHERE active
		ORDER BY country, tier
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tier configs: %w", err)
	}
	defer rows.Close()

	var out []models.TierConfig
	for rows.Next() {
		var config models.TierConfig
		var docs pq.StringArray
		if err := rows.Scan(&config.Country, &config.Tier, &docs, &config.Provider, &config.MinConfidence, &config.Active); err != nil {
			return nil, fmt.Errorf("scan tier config: %w", err)
		}
		config.RequiredDocuments = toDocumentTypes(docs)
		out = append(out, config)
	}
	return out, rows.Err()
}

func toDocumentTypes(docs pq.StringArray) []models.DocumentType {
	out := make([]models.DocumentType, len(docs))
	for i, d := range docs {
		out[i] = models.DocumentType(d)
	}
	return out
}
