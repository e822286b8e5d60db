package memory

import (
	"context"
	"sync"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// SessionStore keeps sessions indefinitely; expiry is judged by the caller
// against ExpiresAt, matching the lazy-expiry contract.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *SessionStore) Put(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.SessionID] = &copied
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *SessionStore) SetStatus(_ context.Context, sessionID id.SessionID, status models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	session.Status = status
	return nil
}
