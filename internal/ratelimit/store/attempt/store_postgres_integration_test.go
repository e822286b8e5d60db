//go:build integration

package attempt_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"kycgate/internal/ratelimit"
	"kycgate/internal/ratelimit/store/attempt"
	"kycgate/pkg/testutil"
)

const attemptsSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_attempts (
    id           BIGSERIAL PRIMARY KEY,
    window_key   TEXT        NOT NULL,
    attempted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_attempts_key_time
    ON rate_limit_attempts (window_key, attempted_at DESC);`

func newStore(t *testing.T) *attempt.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dsn := testutil.StartPostgres(t)
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), attemptsSchema)
	require.NoError(t, err)

	return attempt.NewPostgresStore(pool)
}

func TestPostgresCheckAndAppend(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	limits := ratelimit.Limits{HourlyCap: 3, DailyCap: 5}

	for i := 0; i < 3; i++ {
		allowed, hourly, _, err := store.CheckAndAppend(ctx, "u:a", time.Now(), limits)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, i+1, hourly)
	}

	allowed, hourly, daily, err := store.CheckAndAppend(ctx, "u:a", time.Now(), limits)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 3, hourly)
	require.Equal(t, 3, daily)

	// Another key is unaffected.
	allowed, _, _, err = store.CheckAndAppend(ctx, "u:b", time.Now(), limits)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestPostgresConcurrentBurst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	limits := ratelimit.Limits{HourlyCap: 5, DailyCap: 10}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, _, err := store.CheckAndAppend(ctx, "burst", time.Now(), limits)
			require.NoError(t, err)
			results <- allowed
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	require.Equal(t, 5, admitted)
}

func TestPostgresOldestAndPrune(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	limits := ratelimit.Limits{HourlyCap: 5, DailyCap: 10}

	_, _, _, err := store.CheckAndAppend(ctx, "u:c", time.Now(), limits)
	require.NoError(t, err)

	oldest, err := store.OldestInWindow(ctx, "u:c", time.Now(), time.Hour)
	require.NoError(t, err)
	require.False(t, oldest.IsZero())

	require.NoError(t, store.Prune(ctx, time.Now().Add(time.Minute)))

	oldest, err = store.OldestInWindow(ctx, "u:c", time.Now(), time.Hour)
	require.NoError(t, err)
	require.True(t, oldest.IsZero())
}
