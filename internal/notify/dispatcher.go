// Package notify turns verification outcomes into user-facing notifications
// and hands them to the message bus for delivery.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

// EventPublisher is the message bus producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Message is the wire payload consumed by the delivery pipeline.
type Message struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ActionURL string    `json:"action_url,omitempty"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sent_at"`
}

type template struct {
	title     string
	body      string
	actionURL string
}

var templates = map[models.Tier]map[models.Status]template{
	models.TierBasic: {
		models.StatusVerified: {
			title:     "Basic verification complete",
			body:      "Your identity has been verified. You can now start investing.",
			actionURL: "/investment",
		},
		models.StatusFailed: {
			title:     "Basic verification unsuccessful",
			body:      "We could not verify your identity. Please review your details and try again.",
			actionURL: "/kyc/basic",
		},
	},
	models.TierFull: {
		models.StatusVerified: {
			title:     "Full verification complete",
			body:      "Your account is fully verified. All features are now available.",
			actionURL: "/investment",
		},
		models.StatusFailed: {
			title:     "Full verification unsuccessful",
			body:      "We could not complete your full verification. Please try again.",
			actionURL: "/kyc/full",
		},
	},
}

// Dispatcher publishes outcome notifications. Only terminal statuses have
// templates; anything else is silently skipped.
type Dispatcher struct {
	publisher EventPublisher
	topic     string
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func NewDispatcher(publisher EventPublisher, topic string, opts ...Option) (*Dispatcher, error) {
	if publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	d := &Dispatcher{publisher: publisher, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Notify(ctx context.Context, userID id.UserID, tier models.Tier, status models.Status) error {
	tmpl, ok := templates[tier][status]
	if !ok {
		return nil
	}

	message := Message{
		UserID:    userID.String(),
		Title:     tmpl.title,
		Body:      tmpl.body,
		ActionURL: tmpl.actionURL,
		Tier:      tier.String(),
		Status:    status.String(),
		SentAt:    requestcontext.Now(ctx),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := d.publisher.Publish(ctx, d.topic, userID.String(), payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	d.logger.DebugContext(ctx, "notification published",
		"user_id", userID.String(), "tier", tier.String(), "status", status.String())
	return nil
}
