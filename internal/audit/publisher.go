// Package audit implements the append-only compliance ledger. Every
// verification-relevant action is recorded here; the ledger is the sole
// write path for compliance state.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/middleware"
	"kycgate/pkg/requestcontext"
)

// Publisher records audit entries with fail-closed semantics: Record blocks
// until the store accepts the entry, and an error means the calling operation
// MUST fail. An audit write failure is never silently swallowed.
type Publisher struct {
	store   Store
	outbox  chan<- Entry
	logger  *slog.Logger
	metrics *Metrics
}

type PublisherOption func(*Publisher)

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithOutbox attaches a channel feeding the Kafka outbox worker. Delivery to
// the outbox is best-effort; the store write is the source of truth.
func WithOutbox(outbox chan<- Entry) PublisherOption {
	return func(p *Publisher) {
		p.outbox = outbox
	}
}

func WithMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store Store, opts ...PublisherOption) (*Publisher, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit store is required")
	}
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Record appends one entry to the ledger, enriching it from the request
// context (timestamp, client IP, user agent). Returns an error only on
// storage unavailability, which callers must treat as fatal.
func (p *Publisher) Record(ctx context.Context, userID id.UserID, action string, details map[string]string) error {
	entry := Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: requestcontext.Now(ctx),
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: middleware.DescribeUserAgent(requestcontext.UserAgent(ctx)),
	}

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.IncAppendFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action", action,
				"user_id", userID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit ledger unavailable")
	}

	if p.metrics != nil {
		p.metrics.IncEntriesRecorded(action)
	}

	// Outbox delivery is asynchronous and must not block the transition.
	if p.outbox != nil {
		select {
		case p.outbox <- entry:
		default:
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit outbox full, entry not forwarded",
					"action", action,
				)
			}
		}
	}

	return nil
}
