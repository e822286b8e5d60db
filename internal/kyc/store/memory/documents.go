package memory

import (
	"context"
	"sync"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

type DocumentStore struct {
	mu   sync.RWMutex
	docs []*models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

func (s *DocumentStore) Save(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *doc
	s.docs = append(s.docs, &copied)
	return nil
}

func (s *DocumentStore) SupersedeActive(_ context.Context, userID id.UserID, tier models.Tier, docType models.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.docs {
		if doc.UserID == userID && doc.Tier == tier && doc.Type == docType && !doc.Superseded {
			doc.Superseded = true
		}
	}
	return nil
}

func (s *DocumentStore) ActiveByUser(_ context.Context, userID id.UserID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Document
	for _, doc := range s.docs {
		if doc.UserID == userID && !doc.Superseded {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *DocumentStore) MarkStatus(_ context.Context, docID id.DocumentID, status models.Status, verifiedAt *time.Time, reviewerID *id.ReviewerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.docs {
		if doc.ID == docID {
			doc.Status = status
			doc.VerifiedAt = verifiedAt
			doc.ReviewerID = reviewerID
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// All returns every stored document, for tests.
func (s *DocumentStore) All() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out
}
