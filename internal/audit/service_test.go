package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycgate/internal/audit"
	"kycgate/internal/audit/store/memory"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

type LedgerSuite struct {
	suite.Suite
	store     *memory.Store
	publisher *audit.Publisher
	service   *audit.Service
	ctx       context.Context
	now       time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	var err error
	s.store = memory.New()
	s.publisher, err = audit.NewPublisher(s.store)
	s.Require().NoError(err)
	s.service, err = audit.NewService(s.store)
	s.Require().NoError(err)
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *LedgerSuite) TestRecord() {
	userID := id.NewUserID()

	s.Run("appends exactly one entry", func() {
		err := s.publisher.Record(s.ctx, userID, audit.ActionBasicVerified, map[string]string{"tier": "basic"})
		s.Require().NoError(err)
		s.Equal(1, s.store.Len())

		entry := s.store.All()[0]
		s.Equal(audit.ActionBasicVerified, entry.Action)
		s.Equal(userID, entry.UserID)
		s.Equal(s.now, entry.Timestamp)
	})

	s.Run("enriches from request context", func() {
		ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.9",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
		err := s.publisher.Record(ctx, userID, audit.ActionAdminOverride, nil)
		s.Require().NoError(err)

		entries := s.store.All()
		entry := entries[len(entries)-1]
		s.Equal("203.0.113.9", entry.IPAddress)
		s.Contains(entry.UserAgent, "Chrome")
	})

	s.Run("store failure propagates", func() {
		failing, err := audit.NewPublisher(failingStore{})
		s.Require().NoError(err)
		err = failing.Record(s.ctx, userID, audit.ActionBasicFailed, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *LedgerSuite) TestReport() {
	alice := id.NewUserID()
	bob := id.NewUserID()

	record := func(user id.UserID, action string, at time.Time) {
		ctx := requestcontext.WithTime(context.Background(), at)
		s.Require().NoError(s.publisher.Record(ctx, user, action, nil))
	}

	record(alice, audit.ActionBasicSubmitted, s.now)
	record(alice, audit.ActionBasicVerified, s.now.Add(time.Minute))
	record(bob, audit.ActionBasicSubmitted, s.now.Add(2*time.Minute))
	record(bob, audit.ActionBasicFailed, s.now.Add(3*time.Minute))
	// Outside the range, must not be counted.
	record(alice, audit.ActionFullSubmitted, s.now.Add(2*time.Hour))

	report, err := s.service.Report(s.ctx, s.now, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(4, report.TotalActions)
	s.Equal(2, report.ActionCounts[audit.ActionBasicSubmitted])
	s.Equal(1, report.ActionCounts[audit.ActionBasicVerified])
	s.Equal(1, report.ActionCounts[audit.ActionBasicFailed])
	s.Equal(2, report.UniqueUserCount)
}

func (s *LedgerSuite) TestReportRejectsInvertedRange() {
	_, err := s.service.Report(s.ctx, s.now, s.now.Add(-time.Hour))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *LedgerSuite) TestTrail() {
	userID := id.NewUserID()
	other := id.NewUserID()

	for i := 0; i < 5; i++ {
		ctx := requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.publisher.Record(ctx, userID, audit.ActionBasicSubmitted, map[string]string{"n": string(rune('a' + i))}))
	}
	s.Require().NoError(s.publisher.Record(s.ctx, other, audit.ActionBasicSubmitted, nil))

	s.Run("newest first", func() {
		entries, _, err := s.service.Trail(s.ctx, userID, "", 10)
		s.Require().NoError(err)
		s.Require().Len(entries, 5)
		for i := 1; i < len(entries); i++ {
			s.False(entries[i].Timestamp.After(entries[i-1].Timestamp))
		}
	})

	s.Run("pagination is restartable", func() {
		page1, cursor, err := s.service.Trail(s.ctx, userID, "", 2)
		s.Require().NoError(err)
		s.Len(page1, 2)
		s.NotEmpty(cursor)

		page2, cursor2, err := s.service.Trail(s.ctx, userID, cursor, 2)
		s.Require().NoError(err)
		s.Len(page2, 2)
		s.NotEmpty(cursor2)

		page3, cursor3, err := s.service.Trail(s.ctx, userID, cursor2, 2)
		s.Require().NoError(err)
		s.Len(page3, 1)
		s.Empty(cursor3)

		// No overlap between pages.
		seen := make(map[string]bool)
		for _, e := range append(append(page1, page2...), page3...) {
			s.False(seen[e.ID.String()])
			seen[e.ID.String()] = true
		}
	})

	s.Run("malformed cursor rejected", func() {
		_, _, err := s.service.Trail(s.ctx, userID, "not-a-cursor!!!", 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("page size bounded", func() {
		entries, _, err := s.service.Trail(s.ctx, userID, "", 100000)
		s.Require().NoError(err)
		s.LessOrEqual(len(entries), audit.MaxTrailPageSize)
	})
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) error {
	return errors.New("storage unavailable")
}

func (failingStore) TrailByUser(context.Context, id.UserID, int, int) ([]audit.Entry, error) {
	return nil, errors.New("storage unavailable")
}

func (failingStore) Aggregate(context.Context, time.Time, time.Time) (*audit.Report, error) {
	return nil, errors.New("storage unavailable")
}
