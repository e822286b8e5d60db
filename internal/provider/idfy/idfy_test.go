package idfy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycgate/internal/provider"
)

type IDfySuite struct {
	suite.Suite
}

func TestIDfySuite(t *testing.T) {
	suite.Run(t, new(IDfySuite))
}

func (s *IDfySuite) newServer(handler http.HandlerFunc) *Adapter {
	srv := httptest.NewServer(handler)
	s.T().Cleanup(srv.Close)
	return New(srv.URL, "acct-1", "key-1", 5*time.Second, srv.Client())
}

func (s *IDfySuite) TestVideoKYCInitiate() {
	var gotPath, gotAccount string
	var gotTask taskRequest

	adapter := s.newServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccount = r.Header.Get("account-id")
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&gotTask))
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "idfy-req-9",
			"status":     "in_progress",
		})
	})

	res, err := adapter.Verify(context.Background(), provider.Request{
		Capability: provider.CapabilityVideoKYCInitiate,
		UserRef:    "user-7",
	})
	s.Require().NoError(err)
	s.Equal("/tasks/sync/video_kyc", gotPath)
	s.Equal("acct-1", gotAccount)
	s.NotEmpty(gotTask.TaskID)
	s.Equal("user-7", gotTask.GroupID)
	s.Equal("idfy-req-9", res.Reference)
	s.Equal("in_progress", res.RawStatus)
}

func (s *IDfySuite) TestFailedTaskIsRejection() {
	adapter := s.newServer(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"request_id": "idfy-req-10",
			"status":     "failed",
			"message":    "face not visible",
		})
	})

	_, err := adapter.Verify(context.Background(), provider.Request{
		Capability: provider.CapabilityVideoKYCInitiate,
		UserRef:    "user-7",
	})
	s.Require().Error(err)
	s.True(provider.IsRejected(err))

	var perr *provider.Error
	s.Require().ErrorAs(err, &perr)
	s.Equal("face not visible", perr.Reason)
}

func (s *IDfySuite) TestUnprocessableIsRejection() {
	adapter := s.newServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := adapter.Verify(context.Background(), provider.Request{
		Capability:      provider.CapabilityDocumentOCR,
		DocumentPayload: "base64-doc",
	})
	s.Require().Error(err)
	s.True(provider.IsRejected(err))
}

func (s *IDfySuite) TestUnknownStatusIsUnavailable() {
	adapter := s.newServer(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "queued?"})
	})

	_, err := adapter.Verify(context.Background(), provider.Request{
		Capability: provider.CapabilityVideoKYCInitiate,
		UserRef:    "user-7",
	})
	s.Require().Error(err)
	s.True(provider.IsRetryable(err))
}
