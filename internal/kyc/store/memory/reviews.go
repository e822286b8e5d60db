package memory

import (
	"context"
	"sync"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

type ReviewStore struct {
	mu      sync.RWMutex
	reviews []models.Review
}

func NewReviewStore() *ReviewStore {
	return &ReviewStore{}
}

func (s *ReviewStore) Append(_ context.Context, review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews = append(s.reviews, review)
	return nil
}

func (s *ReviewStore) ByUser(_ context.Context, userID id.UserID) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Review
	for i := len(s.reviews) - 1; i >= 0; i-- {
		if s.reviews[i].UserID == userID {
			out = append(out, s.reviews[i])
		}
	}
	return out, nil
}
