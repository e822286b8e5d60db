// Package service implements the verification state machine. All status
// transitions funnel through compare-and-swap on the record store, so two
// racing transitions resolve to exactly one winner.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kycgate/internal/audit"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/provider"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
)

const (
	// DefaultSessionTTL bounds asynchronous provider flows.
	DefaultSessionTTL = 30 * time.Minute

	// defaultMinConfidence applies when a tier config does not set one.
	defaultMinConfidence = 0.85
)

type Service struct {
	records     ports.RecordStore
	documents   ports.DocumentStore
	sessions    ports.SessionStore
	tierConfigs ports.TierConfigStore
	reviews     ports.ReviewStore
	providers   *provider.Registry
	limiter     ports.RateLimiter
	auditor     ports.AuditPublisher
	notifier    ports.Notifier
	logger      *slog.Logger
	metrics     *Metrics
	sessionTTL  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRateLimiter(limiter ports.RateLimiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

func WithNotifier(notifier ports.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithReviewStore(reviews ports.ReviewStore) Option {
	return func(s *Service) { s.reviews = reviews }
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// New wires the state machine. The audit publisher is mandatory: every
// transition must leave a ledger entry, and a ledger that cannot be written
// fails the transition rather than losing it.
func New(
	records ports.RecordStore,
	documents ports.DocumentStore,
	sessions ports.SessionStore,
	tierConfigs ports.TierConfigStore,
	providers *provider.Registry,
	auditor ports.AuditPublisher,
	opts ...Option,
) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if documents == nil {
		return nil, errors.New("document store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if tierConfigs == nil {
		return nil, errors.New("tier config store is required")
	}
	if providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}

	s := &Service{
		records:     records,
		documents:   documents,
		sessions:    sessions,
		tierConfigs: tierConfigs,
		providers:   providers,
		auditor:     auditor,
		logger:      slog.Default(),
		sessionTTL:  DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func submittedAction(tier models.Tier) string {
	if tier == models.TierFull {
		return audit.ActionFullSubmitted
	}
	return audit.ActionBasicSubmitted
}

func outcomeAction(tier models.Tier, status models.Status) string {
	switch {
	case tier == models.TierFull && status == models.StatusVerified:
		return audit.ActionFullVerified
	case tier == models.TierFull && status == models.StatusFailed:
		return audit.ActionFullFailed
	case status == models.StatusVerified:
		return audit.ActionBasicVerified
	default:
		return audit.ActionBasicFailed
	}
}

// finalize applies the terminal transition for a pending tier. The audit
// write is fail-closed; the notification is best-effort and sent at most
// once, after the transition and its audit entry both landed. The document
// keeps its own provider outcome in docStatus, which diverges from the
// record status when the document passed but the tier's required set is
// still incomplete.
func (s *Service) finalize(
	ctx context.Context,
	userID id.UserID,
	tier models.Tier,
	status models.Status,
	doc *models.Document,
	docStatus models.Status,
	details map[string]string,
	now time.Time,
) error {
	var verifiedAt *time.Time
	if status == models.StatusVerified {
		verifiedAt = &now
	}

	expected := ports.TierStatus{Tier: tier, Status: models.StatusPending}
	next := ports.TierStatus{Tier: tier, Status: status}
	if err := s.records.CompareAndSwap(ctx, userID, expected, next, verifiedAt, now); err != nil {
		return err
	}
	s.metrics.ObserveTransition(tier.String(), status.String())

	if doc != nil {
		var docVerifiedAt *time.Time
		if docStatus == models.StatusVerified {
			docVerifiedAt = &now
		}
		if err := s.documents.MarkStatus(ctx, doc.ID, docStatus, docVerifiedAt, nil); err != nil {
			s.logger.ErrorContext(ctx, "failed to update document status",
				"user_id", userID.String(), "document_id", doc.ID.String(), "error", err)
		}
	}

	if err := s.auditor.Record(ctx, userID.String(), outcomeAction(tier, status), details); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record verification outcome")
	}

	s.notify(ctx, userID, tier, status)
	return nil
}

func (s *Service) notify(ctx context.Context, userID id.UserID, tier models.Tier, status models.Status) {
	if s.notifier == nil || !status.Terminal() {
		return
	}
	if err := s.notifier.Notify(ctx, userID, tier, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to send status notification",
			"user_id", userID.String(), "tier", tier.String(), "status", status.String(), "error", err)
	}
}

// documentsSatisfy reports whether every document type the config requires
// is covered by a verified, non-superseded document for that tier. The
// document being finalized counts as covered; callers pass it only when its
// own provider outcome is verified.
func (s *Service) documentsSatisfy(ctx context.Context, userID id.UserID, config *models.TierConfig, current *models.Document) (bool, error) {
	if len(config.RequiredDocuments) == 0 {
		return true, nil
	}
	active, err := s.documents.ActiveByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	covered := make(map[models.DocumentType]bool, len(active))
	for _, doc := range active {
		if doc.Tier == config.Tier && doc.Status == models.StatusVerified {
			covered[doc.Type] = true
		}
	}
	if current != nil {
		covered[current.Type] = true
	}
	for _, required := range config.RequiredDocuments {
		if !covered[required] {
			return false, nil
		}
	}
	return true, nil
}

// revert undoes a provisional pending transition after a downstream failure.
// Best effort: a concurrent transition may already have moved the record,
// and the stored verified_at is untouched because the swap never sets one.
func (s *Service) revert(ctx context.Context, userID id.UserID, from, to ports.TierStatus, now time.Time) {
	if err := s.records.CompareAndSwap(ctx, userID, from, to, nil, now); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		s.logger.ErrorContext(ctx, "failed to revert provisional transition",
			"user_id", userID.String(), "error", err)
	}
}
