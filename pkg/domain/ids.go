// Package domain holds identifier types shared across modules. Wrapping
// uuid.UUID in distinct named types gives compile-time separation between the
// different identifier spaces (a UserID can never be passed where a
// DocumentID is expected).
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "kycgate/pkg/domain-errors"
)

type (
	// UserID identifies a platform user.
	UserID uuid.UUID
	// DocumentID identifies a submitted verification document.
	DocumentID uuid.UUID
	// ReviewerID identifies the admin who performed a manual review.
	ReviewerID uuid.UUID
)

// SessionID identifies a provider-side verification session. Providers mint
// their own identifiers, so this is an opaque non-empty string rather than a
// UUID.
type SessionID string

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string { return uuid.UUID(id).String() }
func NewUserID() UserID          { return UserID(uuid.New()) }

func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) String() string { return uuid.UUID(id).String() }
func NewDocumentID() DocumentID      { return DocumentID(uuid.New()) }

func (id ReviewerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsEmpty() bool  { return id == "" }
func (id SessionID) String() string { return string(id) }

// ParseUserID validates and converts a string into a UserID.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseDocumentID validates and converts a string into a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document_id")
	return DocumentID(u), err
}

// ParseReviewerID validates and converts a string into a ReviewerID.
func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := parseUUID(s, "reviewer_id")
	return ReviewerID(u), err
}

// ParseSessionID validates a provider session identifier. Providers use
// varying schemes, so only emptiness is rejected here.
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session_id cannot be empty")
	}
	return SessionID(s), nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", field)
	}
	return u, nil
}
