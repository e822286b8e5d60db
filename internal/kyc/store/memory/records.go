// Package memory holds in-memory store implementations used by tests and
// single-node runs.
package memory

import (
	"context"
	"sync"
	"time"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

type RecordStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*models.VerificationRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[id.UserID]*models.VerificationRecord)}
}

func (s *RecordStore) Get(_ context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *RecordStore) Create(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.UserID]; exists {
		return sentinel.ErrConflict
	}
	copied := *record
	s.records[record.UserID] = &copied
	return nil
}

func (s *RecordStore) CompareAndSwap(_ context.Context, userID id.UserID, expected, next ports.TierStatus, verifiedAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Tier != expected.Tier || record.Status != expected.Status {
		return sentinel.ErrConflict
	}
	record.Tier = next.Tier
	record.Status = next.Status
	if verifiedAt != nil {
		record.VerifiedAt = verifiedAt
	}
	record.UpdatedAt = now
	return nil
}

func (s *RecordStore) ListByStatus(_ context.Context, status models.Status) ([]models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.VerificationRecord
	for _, record := range s.records {
		if record.Status == status && record.Tier != models.TierNone {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *RecordStore) CountByTierStatus(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, record := range s.records {
		counts[record.Tier.String()+":"+record.Status.String()]++
	}
	return counts, nil
}
