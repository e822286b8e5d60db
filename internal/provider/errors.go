package provider

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes provider failures into a fixed taxonomy so the
// state machine never sees a raw provider error.
type ErrorCategory string

const (
	// ErrorUnavailable indicates the provider could not be reached or timed
	// out. Safe to retry with backoff; not attributed to the user.
	ErrorUnavailable ErrorCategory = "provider_unavailable"

	// ErrorRejected indicates the provider evaluated the input and rejected
	// it. Terminal for this attempt; not retryable without new input.
	ErrorRejected ErrorCategory = "verification_rejected"

	// ErrorBadData indicates the provider returned a malformed response.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorInvalidInput indicates the request failed the adapter's own input
	// validation and never left the process. Not a verification verdict: the
	// caller should surface it to the user without recording an attempt.
	ErrorInvalidInput ErrorCategory = "invalid_input"

	// ErrorAuthentication indicates credential problems with the provider
	// account, an operator issue rather than a user one.
	ErrorAuthentication ErrorCategory = "authentication"
)

// Error wraps provider failures with normalized categorization.
type Error struct {
	Category   ErrorCategory
	ProviderID string
	Reason     string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Reason)
}

func (e *Error) Unwrap() error { return e.Underlying }

// Retryable reports whether this failure is worth retrying.
func (e *Error) Retryable() bool {
	return e.Category == ErrorUnavailable
}

// NewError creates a normalized provider error.
func NewError(category ErrorCategory, providerID, reason string, underlying error) *Error {
	return &Error{
		Category:   category,
		ProviderID: providerID,
		Reason:     reason,
		Underlying: underlying,
	}
}

// Unavailable creates a transient transport failure error.
func Unavailable(providerID string, underlying error) *Error {
	return NewError(ErrorUnavailable, providerID, "provider unreachable", underlying)
}

// Rejected creates a provider-reported rejection with a remediation reason.
func Rejected(providerID, reason string) *Error {
	return NewError(ErrorRejected, providerID, reason, nil)
}

// InvalidInput creates an input-validation error raised before any outbound
// call.
func InvalidInput(providerID string, underlying error) *Error {
	return NewError(ErrorInvalidInput, providerID, "invalid verification input", underlying)
}

// CategoryOf extracts the error category from an error, defaulting to
// ErrorUnavailable for uncategorized failures (the safe assumption: retry
// rather than penalize the user).
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorUnavailable
}

// IsRejected reports whether err is a provider-reported rejection.
func IsRejected(err error) bool {
	return CategoryOf(err) == ErrorRejected
}

// IsInvalidInput reports whether err came from adapter input validation.
func IsInvalidInput(err error) bool {
	return CategoryOf(err) == ErrorInvalidInput
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// Sentinel errors for registry lookups.
var (
	ErrNoProviderForCapability = errors.New("no provider registered for capability")
	ErrProviderNotFound        = errors.New("provider not found")
)
