package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/provider"
	"kycgate/internal/ratelimit"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// SubmitRequest carries one verification submission.
type SubmitRequest struct {
	UserID          id.UserID
	Tier            models.Tier
	Country         string
	DocumentType    models.DocumentType
	DocumentPayload string
	SelfiePayload   string
	OTPCode         string
}

// SubmitResult reports the immediate outcome. SessionID is set when the
// provider flow is asynchronous; Status is then pending until the callback.
type SubmitResult struct {
	Tier      models.Tier   `json:"tier"`
	Status    models.Status `json:"status"`
	SessionID id.SessionID  `json:"session_id,omitempty"`
	Provider  string        `json:"provider,omitempty"`
}

// LimitExceeded carries the limiter decision so transports can surface the
// retry horizon. Always wrapped under CodeRateLimited.
type LimitExceeded struct {
	Decision ratelimit.Decision
}

func (e *LimitExceeded) Error() string {
	return "submission rate limit exceeded: " + e.Decision.Reason
}

func (r SubmitRequest) validate() error {
	if r.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if !r.Tier.Submittable() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "tier %q is not submittable", r.Tier)
	}
	if r.OTPCode == "" && r.DocumentPayload == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "either an OTP code or a document payload is required")
	}
	if r.DocumentPayload != "" && !r.DocumentType.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "document_type is required with a document payload")
	}
	return nil
}

// guardSubmit decides whether the requested tier may be entered from the
// current state. Full verification is additive: it requires a verified basic
// tier first.
func guardSubmit(current ports.TierStatus, requested models.Tier) error {
	if current.Tier == requested && current.Status == models.StatusPending {
		return dErrors.New(dErrors.CodeConflict, "verification already in progress")
	}

	switch requested {
	case models.TierBasic:
		switch {
		case current.Tier == models.TierNone:
			return nil
		case current.Tier == models.TierBasic && current.Status == models.StatusFailed:
			return nil
		default:
			return dErrors.New(dErrors.CodeConflict, "basic verification already completed")
		}
	case models.TierFull:
		switch {
		case current.Tier == models.TierBasic && current.Status == models.StatusVerified:
			return nil
		case current.Tier == models.TierFull && current.Status == models.StatusFailed:
			return nil
		case current.Tier == models.TierFull && current.Status == models.StatusVerified:
			return dErrors.New(dErrors.CodeConflict, "full verification already completed")
		default:
			return dErrors.New(dErrors.CodeBadRequest, "verified basic tier is required before full verification")
		}
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "tier %q is not submittable", requested)
}

// capabilityFor picks the provider capability implied by the submission
// contents.
func capabilityFor(req SubmitRequest) provider.Capability {
	if req.Tier == models.TierBasic {
		if req.OTPCode != "" {
			return provider.CapabilityOTPVerify
		}
		return provider.CapabilityDocumentOCR
	}
	if req.DocumentPayload != "" && req.SelfiePayload != "" {
		return provider.CapabilityBiometricMatch
	}
	return provider.CapabilityVideoKYCInitiate
}

// Submit runs one verification attempt end to end: rate limit, state guard,
// provisional transition, document capture, provider call, and either an
// immediate verdict or an asynchronous session. A verified outcome
// additionally requires every document type the tier configuration lists to
// be on file as verified; a passing provider result on an incomplete set
// fails the attempt.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	providerReq := provider.Request{
		Capability:      capabilityFor(req),
		UserRef:         req.UserID.String(),
		OTPCode:         req.OTPCode,
		DocumentPayload: req.DocumentPayload,
		SelfiePayload:   req.SelfiePayload,
	}
	// Provider-side field requirements are checked up front so malformed
	// input is rejected before it consumes an attempt or leaves an audit
	// entry.
	if err := providerReq.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid verification input")
	}
	now := requestcontext.Now(ctx)

	if s.limiter != nil {
		decision, err := s.limiter.CheckAndRecord(ctx, req.UserID.String(), req.Tier.String()+"_submit")
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, dErrors.Wrap(&LimitExceeded{Decision: decision}, dErrors.CodeRateLimited, "submission rate limit exceeded")
		}
	}

	record, err := s.loadOrCreateRecord(ctx, req.UserID, req.Country)
	if err != nil {
		return nil, err
	}

	current := ports.TierStatus{Tier: record.Tier, Status: record.Status}
	if err := guardSubmit(current, req.Tier); err != nil {
		return nil, err
	}

	config, err := s.tierConfigs.Get(ctx, record.Country, req.Tier)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s verification is not available in %s", req.Tier, record.Country)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load tier configuration")
	}
	if req.DocumentPayload != "" && len(config.RequiredDocuments) > 0 && !config.Requires(req.DocumentType) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "document type %q is not accepted in %s", req.DocumentType, record.Country)
	}

	pending := ports.TierStatus{Tier: req.Tier, Status: models.StatusPending}
	if err := s.records.CompareAndSwap(ctx, req.UserID, current, pending, nil, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "verification already in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "begin verification")
	}
	s.metrics.ObserveTransition(req.Tier.String(), models.StatusPending.String())

	auditDetails := map[string]string{"tier": req.Tier.String(), "country": record.Country}
	if err := s.auditor.Record(ctx, req.UserID.String(), submittedAction(req.Tier), auditDetails); err != nil {
		s.revert(ctx, req.UserID, pending, current, now)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record submission")
	}

	var doc *models.Document
	if req.DocumentPayload != "" {
		if err := s.documents.SupersedeActive(ctx, req.UserID, req.Tier, req.DocumentType); err != nil {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "supersede previous documents")
		}
		doc, err = models.NewDocument(req.UserID, req.Tier, req.DocumentType, req.DocumentPayload, now)
		if err != nil {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, err
		}
		if err := s.documents.Save(ctx, doc); err != nil {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "store document")
		}
	}

	prov, err := s.resolveProvider(config.Provider, providerReq.Capability)
	if err != nil {
		s.revert(ctx, req.UserID, pending, current, now)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no provider available")
	}

	providerReq.Country = record.Country
	result, err := prov.Verify(ctx, providerReq)
	if err != nil {
		if provider.IsInvalidInput(err) {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid verification input")
		}
		if provider.IsRejected(err) {
			details := map[string]string{"tier": req.Tier.String(), "reason": rejectionReason(err)}
			if ferr := s.finalize(ctx, req.UserID, req.Tier, models.StatusFailed, doc, models.StatusFailed, details, now); ferr != nil {
				return nil, ferr
			}
			s.metrics.ObserveSubmission(req.Tier.String(), models.StatusFailed.String())
			return &SubmitResult{Tier: req.Tier, Status: models.StatusFailed, Provider: prov.ID()}, nil
		}
		s.revert(ctx, req.UserID, pending, current, now)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification provider unavailable")
	}

	if providerReq.Capability == provider.CapabilityVideoKYCInitiate || result.RawStatus == "in_progress" {
		session, err := s.openSession(ctx, req.UserID, req.Tier, prov.ID(), result.Reference, now)
		if err != nil {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, err
		}
		return &SubmitResult{Tier: req.Tier, Status: models.StatusPending, SessionID: session.SessionID, Provider: prov.ID()}, nil
	}

	docStatus := models.StatusVerified
	details := map[string]string{
		"tier":       req.Tier.String(),
		"provider":   prov.ID(),
		"confidence": strconv.FormatFloat(result.Confidence, 'f', 2, 64),
	}
	if minConfidenceFor(config) > result.Confidence {
		docStatus = models.StatusFailed
		details["reason"] = "confidence below threshold"
	}

	status := docStatus
	if status == models.StatusVerified {
		satisfied, serr := s.documentsSatisfy(ctx, req.UserID, config, doc)
		if serr != nil {
			s.revert(ctx, req.UserID, pending, current, now)
			return nil, dErrors.Wrap(serr, dErrors.CodeUnavailable, "load documents")
		}
		if !satisfied {
			status = models.StatusFailed
			details["reason"] = "required documents incomplete"
		}
	}
	if err := s.finalize(ctx, req.UserID, req.Tier, status, doc, docStatus, details, now); err != nil {
		return nil, err
	}
	s.metrics.ObserveSubmission(req.Tier.String(), status.String())
	return &SubmitResult{Tier: req.Tier, Status: status, Provider: prov.ID()}, nil
}

func (s *Service) loadOrCreateRecord(ctx context.Context, userID id.UserID, country string) (*models.VerificationRecord, error) {
	record, err := s.records.Get(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load verification record")
	}

	if country == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "country is required for first submission")
	}
	record, err = models.NewVerificationRecord(userID, country)
	if err != nil {
		return nil, err
	}
	record.UpdatedAt = requestcontext.Now(ctx)
	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a creation race; the other writer's record is authoritative.
			return s.records.Get(ctx, userID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create verification record")
	}
	return record, nil
}

func (s *Service) resolveProvider(configured string, capability provider.Capability) (provider.Provider, error) {
	if configured != "" {
		if prov, ok := s.providers.Get(configured); ok {
			return prov, nil
		}
	}
	return s.providers.ForCapability(capability)
}

// openSession records an asynchronous provider flow. The provider's own
// reference becomes the session id when it supplies one, so the callback's
// sessionId matches without a mapping table.
func (s *Service) openSession(ctx context.Context, userID id.UserID, tier models.Tier, providerID, reference string, now time.Time) (*models.Session, error) {
	sessionID := id.SessionID(reference)
	if sessionID.IsEmpty() {
		sessionID = id.SessionID(uuid.NewString())
	}
	session := &models.Session{
		SessionID: sessionID,
		UserID:    userID,
		Tier:      tier,
		Provider:  providerID,
		Status:    models.SessionActive,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "store verification session")
	}
	return session, nil
}

func rejectionReason(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) && perr.Reason != "" {
		return perr.Reason
	}
	return "rejected by provider"
}

func minConfidenceFor(config *models.TierConfig) float64 {
	if config.MinConfidence > 0 {
		return config.MinConfidence
	}
	return defaultMinConfidence
}
