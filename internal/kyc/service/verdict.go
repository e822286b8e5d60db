package service

import (
	"context"
	"errors"
	"strconv"

	"kycgate/internal/kyc/models"
	"kycgate/internal/webhook"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// ApplyProviderVerdict resolves an asynchronous session from an
// authenticated provider callback. Duplicate deliveries for a completed
// session are acknowledged without effect; callbacks that lose the race
// against another transition are likewise acknowledged, since the record has
// already moved on.
func (s *Service) ApplyProviderVerdict(ctx context.Context, verdict webhook.Verdict) error {
	sessionID, err := id.ParseSessionID(verdict.SessionID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Provider != verdict.Provider {
		// A provider can only resolve its own sessions.
		return sentinel.ErrNotFound
	}

	switch session.Status {
	case models.SessionCompleted:
		return nil
	case models.SessionExpired, models.SessionCancelled:
		return sentinel.ErrExpired
	}

	if session.Expired(now) {
		if err := s.sessions.SetStatus(ctx, sessionID, models.SessionExpired); err != nil {
			s.logger.ErrorContext(ctx, "failed to expire session",
				"session_id", sessionID.String(), "error", err)
		}
		return sentinel.ErrExpired
	}

	docStatus := models.StatusFailed
	details := map[string]string{
		"tier":       session.Tier.String(),
		"provider":   session.Provider,
		"session_id": sessionID.String(),
		"confidence": strconv.FormatFloat(verdict.Confidence, 'f', 2, 64),
	}
	switch {
	case verdict.Status != models.StatusVerified.String():
		if verdict.Reason != "" {
			details["reason"] = verdict.Reason
		}
	case verdict.Confidence < s.minConfidenceForUser(ctx, session.UserID, session.Tier):
		details["reason"] = "confidence below threshold"
	default:
		docStatus = models.StatusVerified
	}

	doc := s.activeDocumentForTier(ctx, session.UserID, session.Tier)

	// A passing verdict settles only this session's document. The record
	// reaches verified when every document type the tier configuration
	// requires is covered by a verified document.
	status := docStatus
	if status == models.StatusVerified {
		config, cerr := s.configForUser(ctx, session.UserID, session.Tier)
		if cerr != nil {
			return dErrors.Wrap(cerr, dErrors.CodeUnavailable, "load tier configuration")
		}
		satisfied, serr := s.documentsSatisfy(ctx, session.UserID, config, doc)
		if serr != nil {
			return dErrors.Wrap(serr, dErrors.CodeUnavailable, "load documents")
		}
		if !satisfied {
			status = models.StatusFailed
			details["reason"] = "required documents incomplete"
		}
	}

	if err := s.finalize(ctx, session.UserID, session.Tier, status, doc, docStatus, details, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.WarnContext(ctx, "verdict lost transition race, ignoring",
				"session_id", sessionID.String(), "user_id", session.UserID.String())
			_ = s.sessions.SetStatus(ctx, sessionID, models.SessionCompleted)
			return nil
		}
		return err
	}

	if err := s.sessions.SetStatus(ctx, sessionID, models.SessionCompleted); err != nil {
		s.logger.ErrorContext(ctx, "failed to complete session",
			"session_id", sessionID.String(), "error", err)
	}
	return nil
}

func (s *Service) configForUser(ctx context.Context, userID id.UserID, tier models.Tier) (*models.TierConfig, error) {
	record, err := s.records.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tierConfigs.Get(ctx, record.Country, tier)
}

func (s *Service) minConfidenceForUser(ctx context.Context, userID id.UserID, tier models.Tier) float64 {
	config, err := s.configForUser(ctx, userID, tier)
	if err != nil {
		return defaultMinConfidence
	}
	return minConfidenceFor(config)
}

// activeDocumentForTier picks the document the in-flight session is
// resolving: the pending one when present, otherwise the newest active
// document for the tier.
func (s *Service) activeDocumentForTier(ctx context.Context, userID id.UserID, tier models.Tier) *models.Document {
	docs, err := s.documents.ActiveByUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load documents", "user_id", userID.String(), "error", err)
		return nil
	}
	var latest *models.Document
	for i := range docs {
		if docs[i].Tier != tier {
			continue
		}
		if docs[i].Status == models.StatusPending {
			return &docs[i]
		}
		if latest == nil || docs[i].CreatedAt.After(latest.CreatedAt) {
			latest = &docs[i]
		}
	}
	return latest
}

var _ webhook.VerdictApplier = (*Service)(nil)
