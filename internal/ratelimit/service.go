package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

const auditActionRateLimitExceeded = "rate_limit_exceeded"

// Service applies the sliding-window caps. Denials are recorded to the audit
// ledger as security events; store failures deny the request rather than
// letting an unbounded caller through.
type Service struct {
	store    AttemptStore
	defaults Limits
	perAct   map[string]Limits
	audit    AuditPublisher
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(audit AuditPublisher) Option {
	return func(s *Service) { s.audit = audit }
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithActionLimits overrides the default caps for one action.
func WithActionLimits(action string, limits Limits) Option {
	return func(s *Service) { s.perAct[SanitizeKey(action)] = limits }
}

func New(store AttemptStore, defaults Limits, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("attempt store is required")
	}
	if defaults.HourlyCap <= 0 || defaults.DailyCap <= 0 {
		return nil, fmt.Errorf("limits must be positive, got hourly=%d daily=%d", defaults.HourlyCap, defaults.DailyCap)
	}
	s := &Service{
		store:    store,
		defaults: defaults,
		perAct:   make(map[string]Limits),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) limitsFor(action string) Limits {
	if l, ok := s.perAct[SanitizeKey(action)]; ok {
		return l
	}
	return s.defaults
}

// CheckAndRecord atomically evaluates both windows for the user and action
// and records the attempt when allowed. A denied decision is returned with a
// nil error; errors mean the limiter itself could not answer.
func (s *Service) CheckAndRecord(ctx context.Context, userID, action string) (Decision, error) {
	if userID == "" || action == "" {
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "user id and action are required")
	}

	key := WindowKey(userID, action)
	limits := s.limitsFor(action)
	now := requestcontext.Now(ctx)

	allowed, hourly, daily, err := s.store.CheckAndAppend(ctx, key, now, limits)
	if err != nil {
		s.metrics.ObserveDecision(action, "error")
		return Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}

	decision := Decision{
		Allowed:         allowed,
		RemainingHourly: max(limits.HourlyCap-hourly, 0),
		RemainingDaily:  max(limits.DailyCap-daily, 0),
	}
	if allowed {
		s.metrics.ObserveDecision(action, "allowed")
		return decision, nil
	}

	window := HourWindow
	decision.Reason = ReasonHourlyLimitExceeded
	if daily >= limits.DailyCap {
		window = DayWindow
		decision.Reason = ReasonDailyLimitExceeded
	}
	if oldest, err := s.store.OldestInWindow(ctx, key, now, window); err == nil && !oldest.IsZero() {
		decision.ResetAt = oldest.Add(window)
	}

	s.metrics.ObserveDecision(action, "denied")
	s.recordDenial(ctx, userID, action, decision, hourly, daily)
	return decision, nil
}

func (s *Service) recordDenial(ctx context.Context, userID, action string, decision Decision, hourly, daily int) {
	if s.audit == nil {
		return
	}
	details := map[string]string{
		"action":       action,
		"reason":       decision.Reason,
		"hourly_count": strconv.Itoa(hourly),
		"daily_count":  strconv.Itoa(daily),
	}
	if !decision.ResetAt.IsZero() {
		details["reset_at"] = decision.ResetAt.Format(time.RFC3339)
	}
	if err := s.audit.Record(ctx, userID, auditActionRateLimitExceeded, details); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit rate limit denial",
			"user_id", userID, "action", action, "error", err)
	}
}
