package ratelimit

import (
	"context"
	"time"
)

// AttemptStore tracks timed attempts per window key. CheckAndAppend must be
// atomic: it evaluates both windows and records the attempt only when both
// caps permit it, under the store's own concurrency control.
type AttemptStore interface {
	// CheckAndAppend records an attempt at now if fewer than limits.HourlyCap
	// attempts exist in (now-hour, now] and fewer than limits.DailyCap in
	// (now-day, now]. It reports whether the attempt was recorded along with
	// the post-decision counts for each window.
	CheckAndAppend(ctx context.Context, key string, now time.Time, limits Limits) (allowed bool, hourlyCount, dailyCount int, err error)

	// OldestInWindow returns the timestamp of the oldest attempt within the
	// given window ending at now, or the zero time when the window is empty.
	OldestInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (time.Time, error)

	// Prune discards attempts older than the retention horizon.
	Prune(ctx context.Context, before time.Time) error
}

// AuditPublisher records denial events to the compliance ledger.
type AuditPublisher interface {
	Record(ctx context.Context, userID string, action string, details map[string]string) error
}
