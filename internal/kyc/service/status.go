package service

import (
	"context"
	"errors"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
)

// DocumentView is the outward shape of a submitted document. Payloads never
// leave the service.
type DocumentView struct {
	ID         string     `json:"id"`
	Type       string     `json:"document_type"`
	Tier       string     `json:"tier"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// StatusView is the user-facing verification status.
type StatusView struct {
	UserID     string         `json:"user_id"`
	Tier       string         `json:"tier"`
	Status     string         `json:"status"`
	Country    string         `json:"country,omitempty"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
	Documents  []DocumentView `json:"documents,omitempty"`
	NextStep   string         `json:"next_step"`
}

// Status reports a user's verification state. Users with no record yet get
// the neutral starting view rather than an error.
func (s *Service) Status(ctx context.Context, userID id.UserID) (*StatusView, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}

	record, err := s.records.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &StatusView{
			UserID:   userID.String(),
			Tier:     models.TierNone.String(),
			Status:   models.StatusPending.String(),
			NextStep: nextStep(models.TierNone, models.StatusPending),
		}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load verification record")
	}

	view := &StatusView{
		UserID:     userID.String(),
		Tier:       record.Tier.String(),
		Status:     record.Status.String(),
		Country:    record.Country,
		VerifiedAt: record.VerifiedAt,
		UpdatedAt:  &record.UpdatedAt,
		NextStep:   nextStep(record.Tier, record.Status),
	}

	docs, err := s.documents.ActiveByUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load documents for status view",
			"user_id", userID.String(), "error", err)
		return view, nil
	}
	for _, doc := range docs {
		view.Documents = append(view.Documents, DocumentView{
			ID:         doc.ID.String(),
			Type:       doc.Type.String(),
			Tier:       doc.Tier.String(),
			Status:     doc.Status.String(),
			VerifiedAt: doc.VerifiedAt,
			CreatedAt:  doc.CreatedAt,
		})
	}
	return view, nil
}

// nextStep gives users a remediation hint for their current state.
func nextStep(tier models.Tier, status models.Status) string {
	switch {
	case tier == models.TierNone:
		return "submit basic verification"
	case status == models.StatusPending:
		return "verification in progress"
	case tier == models.TierBasic && status == models.StatusFailed:
		return "resubmit basic verification"
	case tier == models.TierBasic && status == models.StatusVerified:
		return "submit full verification to unlock all features"
	case tier == models.TierFull && status == models.StatusFailed:
		return "resubmit full verification"
	default:
		return "fully verified"
	}
}
