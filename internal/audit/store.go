package audit

import (
	"context"
	"time"

	id "kycgate/pkg/domain"
)

// Store persists audit entries. Implementations are append-only: nothing
// updates or deletes an entry once written.
type Store interface {
	// Append writes one entry. Failures must propagate to the caller;
	// the publisher relies on this for fail-closed semantics.
	Append(ctx context.Context, entry Entry) error

	// TrailByUser returns entries for a user, newest first, starting at
	// offset. Limit must be positive.
	TrailByUser(ctx context.Context, userID id.UserID, offset, limit int) ([]Entry, error)

	// Aggregate groups entries by action over [start, end].
	Aggregate(ctx context.Context, start, end time.Time) (*Report, error)
}
