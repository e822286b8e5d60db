package models

import (
	"time"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// Tier is the verification depth a user has reached or is pursuing.
// Full is strictly additive on top of basic, never a replacement.
type Tier string

const (
	TierNone  Tier = "none"
	TierBasic Tier = "basic"
	TierFull  Tier = "full"
)

// IsValid checks if the tier is one of the supported enum values.
func (t Tier) IsValid() bool {
	switch t {
	case TierNone, TierBasic, TierFull:
		return true
	}
	return false
}

// Submittable reports whether a user can request this tier at all.
func (t Tier) Submittable() bool {
	return t == TierBasic || t == TierFull
}

func (t Tier) String() string { return string(t) }

// ParseTier validates a tier string from a request.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid tier %q: must be one of none, basic, full", s)
	}
	return t, nil
}

// Status is the verification state within a tier.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status ends a verification flow.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// ParseStatus validates a status string from a request.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q: must be one of pending, verified, failed", s)
	}
	return st, nil
}

// DocumentType classifies a submitted identity artifact.
type DocumentType string

const (
	DocNationalID     DocumentType = "national-id"
	DocTaxID          DocumentType = "tax-id"
	DocPassport       DocumentType = "passport"
	DocDrivingLicense DocumentType = "driving-license"
	DocForeignID      DocumentType = "foreign-id"
)

// IsValid checks if the document type is one of the supported enum values.
func (d DocumentType) IsValid() bool {
	switch d {
	case DocNationalID, DocTaxID, DocPassport, DocDrivingLicense, DocForeignID:
		return true
	}
	return false
}

func (d DocumentType) String() string { return string(d) }

// ParseDocumentType validates a document type string from a request.
func ParseDocumentType(s string) (DocumentType, error) {
	d := DocumentType(s)
	if !d.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported document type %q", s)
	}
	return d, nil
}

// VerificationRecord is the per-user verification state. Owned exclusively by
// the state machine; mutated only through its transition function, never
// deleted.
type VerificationRecord struct {
	UserID     id.UserID  `json:"user_id"`
	Tier       Tier       `json:"tier"`
	Status     Status     `json:"status"`
	Country    string     `json:"country"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewVerificationRecord creates the initial (unverified) record for a user.
func NewVerificationRecord(userID id.UserID, country string) (*VerificationRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user_id cannot be nil")
	}
	if country == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "country cannot be empty")
	}
	// Status carries no meaning while Tier is none; pending is the neutral
	// starting value.
	return &VerificationRecord{
		UserID:  userID,
		Tier:    TierNone,
		Status:  StatusPending,
		Country: country,
	}, nil
}

// Document is one submitted verification artifact. Once a tier is finalized
// documents are immutable for audit purposes: superseding submissions create
// new records rather than overwriting.
type Document struct {
	ID         id.DocumentID  `json:"id"`
	UserID     id.UserID      `json:"user_id"`
	Type       DocumentType   `json:"document_type"`
	Tier       Tier           `json:"tier"`
	Payload    string         `json:"-"` // opaque encoded artifact, never serialized outward
	Status     Status         `json:"verification_status"`
	Superseded bool           `json:"superseded"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	ReviewerID *id.ReviewerID `json:"reviewer_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewDocument creates a pending document record for a submission.
func NewDocument(userID id.UserID, tier Tier, docType DocumentType, payload string, now time.Time) (*Document, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user_id cannot be nil")
	}
	if !tier.Submittable() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tier must be basic or full")
	}
	if !docType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid document type")
	}
	if payload == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document payload cannot be empty")
	}
	return &Document{
		ID:        id.NewDocumentID(),
		UserID:    userID,
		Type:      docType,
		Tier:      tier,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// SessionStatus tracks a provider-side interactive flow.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
	SessionCancelled SessionStatus = "cancelled"
)

// Session represents a provider-side interactive flow (e.g. a video call)
// that outlives a single request/response.
type Session struct {
	SessionID id.SessionID  `json:"session_id"`
	UserID    id.UserID     `json:"user_id"`
	Tier      Tier          `json:"tier"`
	Provider  string        `json:"provider"`
	Status    SessionStatus `json:"status"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the session has passed its provider-defined
// expiry. Expiry is lazy: an expired session is treated as failed the next
// time it is read, there is no background sweep.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TierConfig is the per (country, tier) verification policy. Read-only at
// request time; administratively updated.
type TierConfig struct {
	Country           string         `json:"country"`
	Tier              Tier           `json:"tier"`
	RequiredDocuments []DocumentType `json:"required_documents"`
	Provider          string         `json:"provider"`
	MinConfidence     float64        `json:"min_confidence"`
	Active            bool           `json:"active"`
}

// Requires reports whether the config demands the given document type.
func (c *TierConfig) Requires(docType DocumentType) bool {
	for _, d := range c.RequiredDocuments {
		if d == docType {
			return true
		}
	}
	return false
}

// Review records a manual reviewer decision alongside the audit entry.
type Review struct {
	UserID     id.UserID     `json:"user_id"`
	ReviewerID id.ReviewerID `json:"reviewer_id"`
	Tier       Tier          `json:"tier"`
	Status     Status        `json:"status"`
	Notes      string        `json:"notes"`
	ReviewedAt time.Time     `json:"reviewed_at"`
}
