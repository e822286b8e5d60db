// Package attempt provides attempt stores for the sliding-window rate
// limiter: an in-memory store for tests and single-node runs, and a postgres
// store for shared deployments.
package attempt

import (
	"context"
	"sync"
	"time"

	"kycgate/internal/ratelimit"
)

// MemoryStore keeps attempt timestamps per key, oldest first. All window
// arithmetic happens under one mutex, which makes check-then-append atomic.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

func (s *MemoryStore) CheckAndAppend(_ context.Context, key string, now time.Time, limits ratelimit.Limits) (bool, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := pruneBefore(s.attempts[key], now.Add(-ratelimit.DayWindow))
	s.attempts[key] = kept

	hourly := countSince(kept, now.Add(-ratelimit.HourWindow))
	daily := len(kept)

	if hourly >= limits.HourlyCap || daily >= limits.DailyCap {
		return false, hourly, daily, nil
	}

	s.attempts[key] = append(kept, now)
	return true, hourly + 1, daily + 1, nil
}

func (s *MemoryStore) OldestInWindow(_ context.Context, key string, now time.Time, window time.Duration) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	for _, t := range s.attempts[key] {
		if t.After(cutoff) {
			return t, nil
		}
	}
	return time.Time{}, nil
}

func (s *MemoryStore) Prune(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, times := range s.attempts {
		kept := pruneBefore(times, before)
		if len(kept) == 0 {
			delete(s.attempts, key)
			continue
		}
		s.attempts[key] = kept
	}
	return nil
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range times {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
