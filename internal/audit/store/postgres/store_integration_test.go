//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"kycgate/internal/audit"
	"kycgate/internal/audit/store/postgres"
	id "kycgate/pkg/domain"
	"kycgate/pkg/testutil"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS kyc_audit_entries (
    id         UUID PRIMARY KEY,
    user_id    UUID,
    action     TEXT NOT NULL,
    details    JSONB,
    timestamp  TIMESTAMPTZ NOT NULL,
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT ''
);`

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dsn := testutil.StartPostgres(t)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), auditSchema)
	require.NoError(t, err)
	return postgres.New(db)
}

func entry(userID id.UserID, action string, at time.Time) audit.Entry {
	return audit.Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Details:   map[string]string{"tier": "basic"},
		Timestamp: at,
		IPAddress: "203.0.113.7",
		UserAgent: "integration-test",
	}
}

func TestAppendAndTrail(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := id.NewUserID()

	require.NoError(t, store.Append(ctx, entry(userID, audit.ActionBasicSubmitted, now)))
	require.NoError(t, store.Append(ctx, entry(userID, audit.ActionBasicVerified, now.Add(time.Second))))
	require.NoError(t, store.Append(ctx, entry(id.NewUserID(), audit.ActionBasicSubmitted, now)))

	// Security events may have no associated user.
	require.NoError(t, store.Append(ctx, audit.Entry{
		ID:        uuid.New(),
		Action:    audit.ActionSignatureInvalid,
		Timestamp: now,
	}))

	trail, err := store.TrailByUser(ctx, userID, 0, 10)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	// Newest first.
	require.Equal(t, audit.ActionBasicVerified, trail[0].Action)
	require.Equal(t, "basic", trail[0].Details["tier"])
	require.Equal(t, "203.0.113.7", trail[0].IPAddress)

	page, err := store.TrailByUser(ctx, userID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, audit.ActionBasicSubmitted, page[0].Action)
}

func TestAggregate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alice, bob := id.NewUserID(), id.NewUserID()
	require.NoError(t, store.Append(ctx, entry(alice, audit.ActionBasicSubmitted, now)))
	require.NoError(t, store.Append(ctx, entry(alice, audit.ActionBasicVerified, now.Add(time.Second))))
	require.NoError(t, store.Append(ctx, entry(bob, audit.ActionBasicSubmitted, now)))
	// Outside the window.
	require.NoError(t, store.Append(ctx, entry(bob, audit.ActionFullSubmitted, now.Add(48*time.Hour))))

	report, err := store.Aggregate(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalActions)
	require.Equal(t, 2, report.ActionCounts[audit.ActionBasicSubmitted])
	require.Equal(t, 1, report.ActionCounts[audit.ActionBasicVerified])
	require.Equal(t, 2, report.UniqueUserCount)
	require.Zero(t, report.ActionCounts[audit.ActionFullSubmitted])
}
