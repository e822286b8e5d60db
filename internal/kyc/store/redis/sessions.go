// Package redis keeps verification sessions in Redis with a TTL, so crashed
// or abandoned flows clean themselves up.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"kycgate/internal/kyc/models"
	"kycgate/internal/platform/redis"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

const keyPrefix = "kyc:session:"

// retentionGrace keeps a session readable past its ExpiresAt so a late
// provider callback is reported as stale rather than unknown. After the
// grace the key vanishes and callers see not-found.
const retentionGrace = 24 * time.Hour

type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Put(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt) + retentionGrace
	if err := s.client.Set(ctx, keyPrefix+session.SessionID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) SetStatus(ctx context.Context, sessionID id.SessionID, status models.SessionStatus) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Status = status

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	// KeepTTL preserves the original retention window.
	if err := s.client.Set(ctx, keyPrefix+sessionID.String(), payload, goredis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
