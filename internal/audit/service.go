package audit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// MaxTrailPageSize bounds one page of a compliance trail so a single lookup
// can never produce an unbounded result set.
const MaxTrailPageSize = 100

// Service exposes the read side of the ledger: per-user trails and aggregate
// compliance reports.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit store is required")
	}
	return &Service{store: store}, nil
}

// Report aggregates ledger activity over [start, end].
func (s *Service) Report(ctx context.Context, start, end time.Time) (*Report, error) {
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "report end must be after start")
	}
	report, err := s.store.Aggregate(ctx, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate audit entries")
	}
	return report, nil
}

// Trail returns one page of a user's audit history, newest first. The cursor
// is opaque to callers; pass the returned cursor to fetch the next page, or
// "" to start from the top. An empty next cursor means the trail is
// exhausted.
func (s *Service) Trail(ctx context.Context, userID id.UserID, cursor string, limit int) ([]Entry, string, error) {
	if userID.IsNil() {
		return nil, "", dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if limit <= 0 || limit > MaxTrailPageSize {
		limit = MaxTrailPageSize
	}

	offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	// Fetch one extra row to learn whether another page exists.
	entries, err := s.store.TrailByUser(ctx, userID, offset, limit+1)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		next = encodeCursor(offset + limit)
	}
	return entries, next, nil
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte("o:" + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "malformed cursor")
	}
	payload, ok := strings.CutPrefix(string(raw), "o:")
	if !ok {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "malformed cursor")
	}
	offset, err := strconv.Atoi(payload)
	if err != nil || offset < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("malformed cursor %q", cursor))
	}
	return offset, nil
}
