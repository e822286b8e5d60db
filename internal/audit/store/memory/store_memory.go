// Package memory provides the in-memory audit store used by unit tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"kycgate/internal/audit"
	id "kycgate/pkg/domain"
)

// Store implements audit.Store over an append-only slice.
type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) TrailByUser(_ context.Context, userID id.UserID, offset, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Insertion order is chronological; walk backwards for newest-first.
	var result []audit.Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if s.entries[i].UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, s.entries[i])
	}
	return result, nil
}

func (s *Store) Aggregate(_ context.Context, start, end time.Time) (*audit.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := &audit.Report{
		Start:        start,
		End:          end,
		ActionCounts: make(map[string]int),
	}
	users := make(map[id.UserID]struct{})
	for _, entry := range s.entries {
		if entry.Timestamp.Before(start) || entry.Timestamp.After(end) {
			continue
		}
		report.TotalActions++
		report.ActionCounts[entry.Action]++
		if !entry.UserID.IsNil() {
			users[entry.UserID] = struct{}{}
		}
	}
	report.UniqueUserCount = len(users)
	return report, nil
}

// Len reports the number of stored entries. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a copy of every entry in insertion order. Test helper.
func (s *Store) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
