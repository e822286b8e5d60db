package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// EventPublisher is the outbound port to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Worker forwards appended ledger entries to the compliance topic. The store
// is the source of truth; the worker exists so downstream compliance
// consumers (SIEM, long-term archival) see entries without polling the
// database.
type Worker struct {
	publisher EventPublisher
	topic     string
	inbox     <-chan Entry
	logger    *slog.Logger
}

func NewWorker(publisher EventPublisher, topic string, inbox <-chan Entry, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, topic: topic, inbox: inbox, logger: logger}
}

// wirePayload is the JSON structure published to the compliance topic.
type wirePayload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	Action    string            `json:"action"`
	Category  string            `json:"category"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp string            `json:"timestamp"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Run consumes entries until the context is cancelled. Publish failures are
// logged and dropped; the database copy of the entry is already durable.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			payload := wirePayload{
				ID:        entry.ID.String(),
				Action:    entry.Action,
				Category:  string(CategoryOf(entry.Action)),
				Details:   entry.Details,
				Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
				IPAddress: entry.IPAddress,
				UserAgent: entry.UserAgent,
			}
			if !entry.UserID.IsNil() {
				payload.UserID = entry.UserID.String()
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				w.logger.ErrorContext(ctx, "marshal audit payload", "error", err)
				continue
			}
			if err := w.publisher.Publish(ctx, w.topic, payload.ID, raw); err != nil {
				w.logger.WarnContext(ctx, "forward audit entry to broker",
					"action", entry.Action,
					"error", err,
				)
			}
		}
	}
}
