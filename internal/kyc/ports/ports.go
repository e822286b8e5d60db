// Package ports declares the dependencies of the verification service.
package ports

import (
	"context"
	"time"

	"kycgate/internal/kyc/models"
	"kycgate/internal/ratelimit"
	id "kycgate/pkg/domain"
)

// TierStatus is a (tier, status) pair used for compare-and-swap transitions.
type TierStatus struct {
	Tier   models.Tier
	Status models.Status
}

// RecordStore persists one verification record per user. CompareAndSwap is
// the only mutation path: it must apply the transition atomically and fail
// with sentinel.ErrConflict when the stored pair no longer matches expected,
// so exactly one of two racing transitions wins. A non-nil verifiedAt
// replaces the stored verification timestamp; nil leaves it untouched, so a
// transient transition through pending cannot erase a prior verification.
type RecordStore interface {
	Get(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error)
	Create(ctx context.Context, record *models.VerificationRecord) error
	CompareAndSwap(ctx context.Context, userID id.UserID, expected, next TierStatus, verifiedAt *time.Time, now time.Time) error
	ListByStatus(ctx context.Context, status models.Status) ([]models.VerificationRecord, error)
	CountByTierStatus(ctx context.Context) (map[string]int, error)
}

// DocumentStore keeps submitted documents. Documents are never overwritten;
// a resubmission supersedes the previous active document of the same tier
// and type, leaving other verified document types on file.
type DocumentStore interface {
	Save(ctx context.Context, doc *models.Document) error
	SupersedeActive(ctx context.Context, userID id.UserID, tier models.Tier, docType models.DocumentType) error
	ActiveByUser(ctx context.Context, userID id.UserID) ([]models.Document, error)
	MarkStatus(ctx context.Context, docID id.DocumentID, status models.Status, verifiedAt *time.Time, reviewerID *id.ReviewerID) error
}

// SessionStore tracks in-flight asynchronous verification sessions. Get must
// still return a session shortly after its ExpiresAt so that stale callbacks
// can be told apart from unknown ones.
type SessionStore interface {
	Put(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	SetStatus(ctx context.Context, sessionID id.SessionID, status models.SessionStatus) error
}

// TierConfigStore resolves per-country tier requirements.
type TierConfigStore interface {
	Get(ctx context.Context, country string, tier models.Tier) (*models.TierConfig, error)
	Upsert(ctx context.Context, config models.TierConfig) error
	ListActive(ctx context.Context) ([]models.TierConfig, error)
}

// ReviewStore keeps the history of manual reviewer decisions.
type ReviewStore interface {
	Append(ctx context.Context, review models.Review) error
	ByUser(ctx context.Context, userID id.UserID) ([]models.Review, error)
}

// AuditPublisher is the fail-closed compliance ledger. A non-nil error from
// Record must abort the operation that produced it.
type AuditPublisher interface {
	Record(ctx context.Context, userID string, action string, details map[string]string) error
}

// RateLimiter gates submission attempts.
type RateLimiter interface {
	CheckAndRecord(ctx context.Context, userID, action string) (ratelimit.Decision, error)
}

// Notifier delivers user-facing status notifications. Called at most once
// per completed transition.
type Notifier interface {
	Notify(ctx context.Context, userID id.UserID, tier models.Tier, status models.Status) error
}
