package audit

import (
	"time"

	"github.com/google/uuid"

	id "kycgate/pkg/domain"
)

// EntryCategory classifies audit entries by their primary purpose.
// This enables different retention policies and downstream routing.
type EntryCategory string

const (
	// CategoryCompliance covers entries with regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EntryCategory = "compliance"

	// CategorySecurity covers entries relevant to security monitoring and
	// forensics (signature failures, rate-limit denials).
	CategorySecurity EntryCategory = "security"

	// CategoryOperations covers entries useful for operational visibility.
	CategoryOperations EntryCategory = "operations"
)

// Entry is the immutable record of one verification-relevant action.
// Append-only: entries are never mutated or deleted.
type Entry struct {
	ID        uuid.UUID
	UserID    id.UserID
	Action    string
	Details   map[string]string
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Action names. Transition actions follow "<tier>_<status>" so compliance
// reports group naturally by outcome.
const (
	ActionBasicSubmitted = "basic_submitted"
	ActionBasicVerified  = "basic_verified"
	ActionBasicFailed    = "basic_failed"
	ActionFullSubmitted  = "full_submitted"
	ActionFullVerified   = "full_verified"
	ActionFullFailed     = "full_failed"
	ActionAdminOverride  = "admin_override"

	ActionSignatureInvalid  = "webhook_signature_invalid"
	ActionStaleWebhook      = "webhook_stale_rejected"
	ActionRateLimitExceeded = "rate_limit_exceeded"

	ActionReportGenerated = "compliance_report_generated"
	ActionRecordsExported = "verification_records_exported"
)

// actionCategories maps each action to its category.
var actionCategories = map[string]EntryCategory{
	ActionBasicSubmitted: CategoryCompliance,
	ActionBasicVerified:  CategoryCompliance,
	ActionBasicFailed:    CategoryCompliance,
	ActionFullSubmitted:  CategoryCompliance,
	ActionFullVerified:   CategoryCompliance,
	ActionFullFailed:     CategoryCompliance,
	ActionAdminOverride:  CategoryCompliance,

	ActionSignatureInvalid:  CategorySecurity,
	ActionStaleWebhook:      CategorySecurity,
	ActionRateLimitExceeded: CategorySecurity,

	ActionReportGenerated: CategoryOperations,
	ActionRecordsExported: CategoryOperations,
}

// CategoryOf returns the category for an action.
// Unknown actions default to CategoryOperations.
func CategoryOf(action string) EntryCategory {
	if cat, ok := actionCategories[action]; ok {
		return cat
	}
	return CategoryOperations
}

// Report aggregates ledger activity over a time range for regulatory
// reporting.
type Report struct {
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	TotalActions    int            `json:"total_actions"`
	ActionCounts    map[string]int `json:"action_counts"`
	UniqueUserCount int            `json:"unique_user_count"`
}
