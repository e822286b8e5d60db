//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/store/postgres"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/testutil"
)

const kycSchema = `
CREATE TABLE IF NOT EXISTS kyc_records (
    user_id     UUID PRIMARY KEY,
    tier        TEXT NOT NULL,
    status      TEXT NOT NULL,
    country     TEXT NOT NULL,
    verified_at TIMESTAMPTZ,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS kyc_documents (
    id          UUID PRIMARY KEY,
    user_id     UUID NOT NULL,
    doc_type    TEXT NOT NULL,
    tier        TEXT NOT NULL,
    payload     TEXT NOT NULL,
    status      TEXT NOT NULL,
    superseded  BOOLEAN NOT NULL DEFAULT false,
    verified_at TIMESTAMPTZ,
    reviewer_id UUID,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS kyc_tier_configs (
    country        TEXT NOT NULL,
    tier           TEXT NOT NULL,
    required_docs  TEXT[] NOT NULL,
    provider       TEXT NOT NULL,
    min_confidence DOUBLE PRECISION NOT NULL,
    active         BOOLEAN NOT NULL DEFAULT true,
    PRIMARY KEY (country, tier)
);
CREATE TABLE IF NOT EXISTS kyc_reviews (
    id          BIGSERIAL PRIMARY KEY,
    user_id     UUID NOT NULL,
    reviewer_id UUID NOT NULL,
    tier        TEXT NOT NULL,
    status      TEXT NOT NULL,
    notes       TEXT NOT NULL DEFAULT '',
    reviewed_at TIMESTAMPTZ NOT NULL
);`

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dsn := testutil.StartPostgres(t)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), kycSchema)
	require.NoError(t, err)
	return db
}

func TestRecordCompareAndSwap(t *testing.T) {
	db := newDB(t)
	store := postgres.NewRecordStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	userID := id.NewUserID()
	record, err := models.NewVerificationRecord(userID, "IN")
	require.NoError(t, err)
	record.UpdatedAt = now
	require.NoError(t, store.Create(ctx, record))

	// A second create for the same user hits the primary key.
	require.ErrorIs(t, store.Create(ctx, record), sentinel.ErrConflict)

	none := ports.TierStatus{Tier: models.TierNone, Status: models.StatusPending}
	pending := ports.TierStatus{Tier: models.TierBasic, Status: models.StatusPending}
	verified := ports.TierStatus{Tier: models.TierBasic, Status: models.StatusVerified}

	require.NoError(t, store.CompareAndSwap(ctx, userID, none, pending, nil, now))

	// The expected pair no longer matches, so a stale transition loses.
	require.ErrorIs(t, store.CompareAndSwap(ctx, userID, none, pending, nil, now), sentinel.ErrConflict)

	verifiedAt := now.Add(time.Minute)
	require.NoError(t, store.CompareAndSwap(ctx, userID, pending, verified, &verifiedAt, verifiedAt))

	got, err := store.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, models.TierBasic, got.Tier)
	require.Equal(t, models.StatusVerified, got.Status)
	require.NotNil(t, got.VerifiedAt)
	require.WithinDuration(t, verifiedAt, *got.VerifiedAt, time.Millisecond)

	// Transitions that pass a nil verifiedAt leave the stored timestamp
	// alone, so moving through full:pending keeps the basic verification.
	fullPending := ports.TierStatus{Tier: models.TierFull, Status: models.StatusPending}
	require.NoError(t, store.CompareAndSwap(ctx, userID, verified, fullPending, nil, verifiedAt.Add(time.Minute)))
	require.NoError(t, store.CompareAndSwap(ctx, userID, fullPending, verified, nil, verifiedAt.Add(2*time.Minute)))

	got, err = store.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got.VerifiedAt)
	require.WithinDuration(t, verifiedAt, *got.VerifiedAt, time.Millisecond)

	require.ErrorIs(t, store.CompareAndSwap(ctx, id.NewUserID(), none, pending, nil, now), sentinel.ErrNotFound)

	_, err = store.Get(ctx, id.NewUserID())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRecordListAndCount(t *testing.T) {
	db := newDB(t)
	store := postgres.NewRecordStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		record, err := models.NewVerificationRecord(id.NewUserID(), "IN")
		require.NoError(t, err)
		record.Tier = models.TierBasic
		record.Status = models.StatusVerified
		record.UpdatedAt = now
		require.NoError(t, store.Create(ctx, record))
	}
	fresh, err := models.NewVerificationRecord(id.NewUserID(), "AE")
	require.NoError(t, err)
	fresh.UpdatedAt = now
	require.NoError(t, store.Create(ctx, fresh))

	listed, err := store.ListByStatus(ctx, models.StatusVerified)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	counts, err := store.CountByTierStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, counts["basic:verified"])
	require.Equal(t, 1, counts["none:pending"])
}

func TestDocumentLifecycle(t *testing.T) {
	db := newDB(t)
	store := postgres.NewDocumentStore(db)
	ctx := context.Background()
	now := time.Now().UTC()
	userID := id.NewUserID()

	first, err := models.NewDocument(userID, models.TierBasic, models.DocPassport, "payload-1", now)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, first))

	// A document of a different type for the same tier stays active across
	// the passport resubmission.
	license, err := models.NewDocument(userID, models.TierBasic, models.DocDrivingLicense, "payload-dl", now)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, license))

	require.NoError(t, store.SupersedeActive(ctx, userID, models.TierBasic, models.DocPassport))

	second, err := models.NewDocument(userID, models.TierBasic, models.DocPassport, "payload-2", now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, second))

	active, err := store.ActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	ids := []id.DocumentID{active[0].ID, active[1].ID}
	require.Contains(t, ids, second.ID)
	require.Contains(t, ids, license.ID)

	verifiedAt := now.Add(time.Minute)
	reviewer := id.ReviewerID(id.NewUserID())
	require.NoError(t, store.MarkStatus(ctx, second.ID, models.StatusVerified, &verifiedAt, &reviewer))

	active, err = store.ActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, models.StatusVerified, active[0].Status)
	require.NotNil(t, active[0].ReviewerID)

	require.ErrorIs(t, store.MarkStatus(ctx, id.NewDocumentID(), models.StatusVerified, nil, nil), sentinel.ErrNotFound)
}

func TestTierConfigUpsert(t *testing.T) {
	db := newDB(t)
	store := postgres.NewTierConfigStore(db)
	ctx := context.Background()

	config := models.TierConfig{
		Country:           "IN",
		Tier:              models.TierBasic,
		RequiredDocuments: []models.DocumentType{models.DocNationalID},
		Provider:          "hyperverge",
		MinConfidence:     0.85,
		Active:            true,
	}
	require.NoError(t, store.Upsert(ctx, config))

	got, err := store.Get(ctx, "in", models.TierBasic)
	require.NoError(t, err)
	require.Equal(t, "hyperverge", got.Provider)
	require.Equal(t, []models.DocumentType{models.DocNationalID}, got.RequiredDocuments)

	config.MinConfidence = 0.9
	require.NoError(t, store.Upsert(ctx, config))
	got, err = store.Get(ctx, "IN", models.TierBasic)
	require.NoError(t, err)
	require.Equal(t, 0.9, got.MinConfidence)

	config.Active = false
	require.NoError(t, store.Upsert(ctx, config))
	_, err = store.Get(ctx, "IN", models.TierBasic)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	listed, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestReviewTrail(t *testing.T) {
	db := newDB(t)
	store := postgres.NewReviewStore(db)
	ctx := context.Background()
	now := time.Now().UTC()
	userID := id.NewUserID()
	reviewer := id.ReviewerID(id.NewUserID())

	require.NoError(t, store.Append(ctx, models.Review{
		UserID: userID, ReviewerID: reviewer,
		Tier: models.TierBasic, Status: models.StatusVerified,
		Notes: "documents re-checked", ReviewedAt: now,
	}))
	require.NoError(t, store.Append(ctx, models.Review{
		UserID: userID, ReviewerID: reviewer,
		Tier: models.TierFull, Status: models.StatusFailed,
		Notes: "video session inconclusive", ReviewedAt: now.Add(time.Minute),
	}))

	reviews, err := store.ByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	// Newest first.
	require.Equal(t, models.TierFull, reviews[0].Tier)
	require.Equal(t, "documents re-checked", reviews[1].Notes)

	other, err := store.ByUser(ctx, id.NewUserID())
	require.NoError(t, err)
	require.Empty(t, other)
}
