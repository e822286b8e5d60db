package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

type capturedPublish struct {
	topic   string
	key     string
	payload []byte
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, capturedPublish{topic: topic, key: key, payload: payload})
	return nil
}

func TestDispatcherPublishesTemplatedMessage(t *testing.T) {
	pub := &fakePublisher{}
	d, err := NewDispatcher(pub, "kyc.notifications")
	require.NoError(t, err)

	userID := id.NewUserID()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	require.NoError(t, d.Notify(ctx, userID, models.TierBasic, models.StatusVerified))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "kyc.notifications", pub.published[0].topic)
	assert.Equal(t, userID.String(), pub.published[0].key)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.published[0].payload, &msg))
	assert.Equal(t, "Basic verification complete", msg.Title)
	assert.Equal(t, "/investment", msg.ActionURL)
	assert.Equal(t, "basic", msg.Tier)
	assert.Equal(t, now, msg.SentAt)
}

func TestDispatcherSkipsNonTerminalStatus(t *testing.T) {
	pub := &fakePublisher{}
	d, err := NewDispatcher(pub, "kyc.notifications")
	require.NoError(t, err)

	require.NoError(t, d.Notify(context.Background(), id.NewUserID(), models.TierBasic, models.StatusPending))
	assert.Empty(t, pub.published)
}

func TestDispatcherEveryTerminalOutcomeHasTemplate(t *testing.T) {
	pub := &fakePublisher{}
	d, err := NewDispatcher(pub, "kyc.notifications")
	require.NoError(t, err)

	for _, tier := range []models.Tier{models.TierBasic, models.TierFull} {
		for _, status := range []models.Status{models.StatusVerified, models.StatusFailed} {
			require.NoError(t, d.Notify(context.Background(), id.NewUserID(), tier, status))
		}
	}
	assert.Len(t, pub.published, 4)
}

func TestDispatcherPropagatesPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	d, err := NewDispatcher(pub, "kyc.notifications")
	require.NoError(t, err)

	err = d.Notify(context.Background(), id.NewUserID(), models.TierFull, models.StatusVerified)
	assert.Error(t, err)
}
