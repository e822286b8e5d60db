package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycgate/internal/ratelimit"
	"kycgate/internal/ratelimit/store/attempt"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []map[string]string
}

func (a *recordingAudit) Record(_ context.Context, userID, action string, details map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := map[string]string{"_user": userID, "_action": action}
	for k, v := range details {
		copied[k] = v
	}
	a.entries = append(a.entries, copied)
	return nil
}

func (a *recordingAudit) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

type LimiterSuite struct {
	suite.Suite

	store *attempt.MemoryStore
	audit *recordingAudit
	svc   *ratelimit.Service
	base  time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.store = attempt.NewMemoryStore()
	s.audit = &recordingAudit{}
	svc, err := ratelimit.New(s.store,
		ratelimit.Limits{HourlyCap: 5, DailyCap: 10},
		ratelimit.WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
	s.svc = svc
	s.base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func (s *LimiterSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.base.Add(offset))
}

func (s *LimiterSuite) TestHourlyCapDeniesSixthAttempt() {
	for i := 0; i < 5; i++ {
		d, err := s.svc.CheckAndRecord(s.at(time.Duration(i)*time.Minute), "user-1", "basic_submit")
		s.Require().NoError(err)
		s.True(d.Allowed, "attempt %d should be allowed", i+1)
	}

	d, err := s.svc.CheckAndRecord(s.at(6*time.Minute), "user-1", "basic_submit")
	s.Require().NoError(err)
	s.False(d.Allowed)
	s.Equal(ratelimit.ReasonHourlyLimitExceeded, d.Reason)
	s.Equal(0, d.RemainingHourly)
	// Oldest attempt was at base, so the window frees up one hour later.
	s.Equal(s.base.Add(time.Hour), d.ResetAt)
}

func (s *LimiterSuite) TestWindowSlides() {
	for i := 0; i < 5; i++ {
		d, err := s.svc.CheckAndRecord(s.at(time.Duration(i)*time.Minute), "user-1", "basic_submit")
		s.Require().NoError(err)
		s.True(d.Allowed)
	}

	// 61 minutes after the first attempt only four remain inside the hour.
	d, err := s.svc.CheckAndRecord(s.at(61*time.Minute), "user-1", "basic_submit")
	s.Require().NoError(err)
	s.True(d.Allowed)
}

func (s *LimiterSuite) TestDailyCapOutlastsHourlyResets() {
	// Two attempts every other hour stays under the hourly cap but hits the
	// daily cap at ten.
	for i := 0; i < 10; i++ {
		d, err := s.svc.CheckAndRecord(s.at(time.Duration(i)*2*time.Hour), "user-1", "basic_submit")
		s.Require().NoError(err)
		s.True(d.Allowed, "attempt %d", i+1)
	}

	d, err := s.svc.CheckAndRecord(s.at(20*time.Hour+time.Minute), "user-1", "basic_submit")
	s.Require().NoError(err)
	s.False(d.Allowed)
	s.Equal(ratelimit.ReasonDailyLimitExceeded, d.Reason)
}

func (s *LimiterSuite) TestKeysAreIndependent() {
	for i := 0; i < 5; i++ {
		_, err := s.svc.CheckAndRecord(s.at(0), "user-1", "basic_submit")
		s.Require().NoError(err)
	}

	s.Run("other user unaffected", func() {
		d, err := s.svc.CheckAndRecord(s.at(0), "user-2", "basic_submit")
		s.Require().NoError(err)
		s.True(d.Allowed)
	})

	s.Run("other action unaffected", func() {
		d, err := s.svc.CheckAndRecord(s.at(0), "user-1", "full_submit")
		s.Require().NoError(err)
		s.True(d.Allowed)
	})
}

func (s *LimiterSuite) TestDenialIsAudited() {
	for i := 0; i < 6; i++ {
		_, err := s.svc.CheckAndRecord(s.at(time.Duration(i)*time.Minute), "user-1", "basic_submit")
		s.Require().NoError(err)
	}

	s.Require().Equal(1, s.audit.len())
	entry := s.audit.entries[0]
	s.Equal("user-1", entry["_user"])
	s.Equal("rate_limit_exceeded", entry["_action"])
	s.Equal(ratelimit.ReasonHourlyLimitExceeded, entry["reason"])
}

func (s *LimiterSuite) TestConcurrentBurstAdmitsExactlyCap() {
	const workers = 50
	ctx := s.at(0)

	var wg sync.WaitGroup
	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.svc.CheckAndRecord(ctx, "user-1", "basic_submit")
			s.NoError(err)
			allowed <- d.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	s.Equal(5, admitted)
}

func (s *LimiterSuite) TestStoreFailureDeniesWithError() {
	svc, err := ratelimit.New(failingStore{}, ratelimit.Limits{HourlyCap: 5, DailyCap: 10})
	s.Require().NoError(err)

	_, err = svc.CheckAndRecord(context.Background(), "user-1", "basic_submit")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *LimiterSuite) TestEmptyIdentifiersRejected() {
	_, err := s.svc.CheckAndRecord(context.Background(), "", "basic_submit")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.CheckAndRecord(context.Background(), "user-1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

type failingStore struct{}

func (failingStore) CheckAndAppend(context.Context, string, time.Time, ratelimit.Limits) (bool, int, int, error) {
	return false, 0, 0, context.DeadlineExceeded
}

func (failingStore) OldestInWindow(context.Context, string, time.Time, time.Duration) (time.Time, error) {
	return time.Time{}, context.DeadlineExceeded
}

func (failingStore) Prune(context.Context, time.Time) error { return context.DeadlineExceeded }

func TestWindowKeySanitization(t *testing.T) {
	a := ratelimit.WindowKey("user:one", "submit")
	b := ratelimit.WindowKey("user", "one:submit")
	if a == b {
		t.Fatalf("distinct identities collided on key %q", a)
	}
}
