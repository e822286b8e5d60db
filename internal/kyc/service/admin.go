package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"kycgate/internal/audit"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// overrideRetries bounds the compare-and-swap loop. An override retries past
// concurrent transitions because the reviewer's decision is forceful, but it
// never spins unbounded.
const overrideRetries = 3

// AdminOverride sets a user's verification state directly. Every override
// leaves both a review row and a compliance audit entry; the audit write is
// fail-closed.
func (s *Service) AdminOverride(ctx context.Context, reviewerID id.ReviewerID, userID id.UserID, tier models.Tier, status models.Status, notes string) error {
	if reviewerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "reviewer_id is required")
	}
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if !tier.Submittable() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "tier %q cannot be set by override", tier)
	}
	if !status.Terminal() {
		return dErrors.New(dErrors.CodeInvalidInput, "override status must be verified or failed")
	}
	now := requestcontext.Now(ctx)

	var verifiedAt *time.Time
	if status == models.StatusVerified {
		verifiedAt = &now
	}

	var from ports.TierStatus
	for attempt := 0; ; attempt++ {
		record, err := s.records.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "no verification record for user")
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "load verification record")
		}

		from = ports.TierStatus{Tier: record.Tier, Status: record.Status}
		next := ports.TierStatus{Tier: tier, Status: status}

		err = s.records.CompareAndSwap(ctx, userID, from, next, verifiedAt, now)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < overrideRetries {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "apply override")
	}
	s.metrics.ObserveTransition(tier.String(), status.String())

	if s.reviews != nil {
		review := models.Review{
			UserID:     userID,
			ReviewerID: reviewerID,
			Tier:       tier,
			Status:     status,
			Notes:      notes,
			ReviewedAt: now,
		}
		if err := s.reviews.Append(ctx, review); err != nil {
			s.logger.ErrorContext(ctx, "failed to store review",
				"user_id", userID.String(), "reviewer_id", reviewerID.String(), "error", err)
		}
	}

	details := map[string]string{
		"reviewer_id": reviewerID.String(),
		"from":        from.Tier.String() + ":" + from.Status.String(),
		"to":          tier.String() + ":" + status.String(),
	}
	if notes != "" {
		details["notes"] = notes
	}
	if err := s.auditor.Record(ctx, userID.String(), audit.ActionAdminOverride, details); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record override")
	}

	s.notify(ctx, userID, tier, status)
	return nil
}

// Statistics reports record counts keyed "tier:status", for the admin
// dashboard.
func (s *Service) Statistics(ctx context.Context) (map[string]int, error) {
	counts, err := s.records.CountByTierStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "count verification records")
	}
	return counts, nil
}

// ExportByStatus returns all records in the given status and leaves an
// operations audit entry naming the export.
func (s *Service) ExportByStatus(ctx context.Context, status models.Status) ([]models.VerificationRecord, error) {
	if !status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q", status)
	}
	records, err := s.records.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list verification records")
	}

	details := map[string]string{"status": status.String(), "count": strconv.Itoa(len(records))}
	if err := s.auditor.Record(ctx, "", audit.ActionRecordsExported, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record export")
	}
	return records, nil
}

// ReviewHistory lists manual review decisions for a user, newest first.
func (s *Service) ReviewHistory(ctx context.Context, userID id.UserID) ([]models.Review, error) {
	if s.reviews == nil {
		return nil, nil
	}
	reviews, err := s.reviews.ByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list reviews")
	}
	return reviews, nil
}
