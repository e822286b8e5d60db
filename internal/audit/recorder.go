package audit

import (
	"context"

	id "kycgate/pkg/domain"
)

// Recorder adapts the publisher for callers that identify users by string,
// including security events with no authenticated user at all (empty string
// maps to the nil user). Fail-closed semantics are inherited from the
// publisher.
type Recorder struct {
	publisher *Publisher
}

func NewRecorder(publisher *Publisher) *Recorder {
	return &Recorder{publisher: publisher}
}

func (r *Recorder) Record(ctx context.Context, userID string, action string, details map[string]string) error {
	var uid id.UserID
	if userID != "" {
		parsed, err := id.ParseUserID(userID)
		if err != nil {
			return err
		}
		uid = parsed
	}
	return r.publisher.Record(ctx, uid, action, details)
}
