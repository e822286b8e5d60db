package provider

import (
	"context"
	"fmt"
	"time"
)

// Capability identifies the kind of verification a provider can perform.
type Capability string

const (
	CapabilityOTPVerify        Capability = "otp-verify"
	CapabilityDocumentOCR      Capability = "document-ocr"
	CapabilityBiometricMatch   Capability = "biometric-match"
	CapabilityVideoKYCInitiate Capability = "video-kyc-initiate"
)

// IsValid checks if the capability is one of the supported enum values.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityOTPVerify, CapabilityDocumentOCR, CapabilityBiometricMatch, CapabilityVideoKYCInitiate:
		return true
	}
	return false
}

// Request carries the inputs for one verification call. Fields are
// capability-specific; Validate enforces which are required.
type Request struct {
	Capability Capability

	// UserRef is a phone-linked or account-linked identifier
	// (required for otp-verify and video-kyc-initiate).
	UserRef string

	// OTPCode is the one-time code the user entered (otp-verify).
	OTPCode string

	// DocumentPayload is the opaque encoded document artifact
	// (document-ocr, biometric-match).
	DocumentPayload string

	// SelfiePayload is the opaque encoded selfie artifact (biometric-match).
	SelfiePayload string

	// Country scopes provider-side workflow selection.
	Country string
}

// Validate checks the capability-specific required fields before any
// outbound call is made.
func (r *Request) Validate() error {
	if !r.Capability.IsValid() {
		return fmt.Errorf("unknown capability %q", r.Capability)
	}
	switch r.Capability {
	case CapabilityOTPVerify:
		if r.UserRef == "" {
			return fmt.Errorf("otp-verify requires a phone-linked identifier")
		}
		if !isNumeric(r.OTPCode) {
			return fmt.Errorf("otp-verify requires a numeric code")
		}
	case CapabilityDocumentOCR:
		if r.DocumentPayload == "" {
			return fmt.Errorf("document-ocr requires a document payload")
		}
	case CapabilityBiometricMatch:
		if r.DocumentPayload == "" || r.SelfiePayload == "" {
			return fmt.Errorf("biometric-match requires document and selfie payloads")
		}
	case CapabilityVideoKYCInitiate:
		if r.UserRef == "" {
			return fmt.Errorf("video-kyc-initiate requires a user identifier")
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Result is the uniform outcome of a verification call. For synchronous
// capabilities Verdict is final; for video-kyc-initiate the provider
// completes out of band and Reference identifies the session the webhook
// will report against.
type Result struct {
	// Confidence is the provider's 0.0-1.0 score for the check.
	Confidence float64

	// ExtractedFields holds structured data the provider read off the
	// document (name, date of birth, document number).
	ExtractedFields map[string]string

	// RawStatus is the provider's own status string, preserved for audit.
	RawStatus string

	// Reference is the provider-side identifier for this check or session.
	Reference string

	CheckedAt time.Time
}

// Provider is the uniform interface over heterogeneous verification
// services. Adapters never mutate verification state; callers interpret the
// result.
type Provider interface {
	// ID returns the unique identifier for this provider.
	ID() string

	// Capabilities returns the capabilities this provider supports.
	Capabilities() []Capability

	// Verify performs one verification call. The request is validated
	// before any outbound traffic.
	Verify(ctx context.Context, req Request) (*Result, error)

	// Health checks if the provider is reachable.
	Health(ctx context.Context) error
}

// Registry maintains all configured providers. Routing happens by tier
// configuration, not by conditional branching at call sites.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) error {
	id := p.ID()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %s already registered", id)
	}
	r.providers[id] = p
	return nil
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// ForCapability returns a registered provider supporting the capability, or
// an error when none does.
func (r *Registry) ForCapability(c Capability) (Provider, error) {
	for _, p := range r.providers {
		for _, cap := range p.Capabilities() {
			if cap == c {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProviderForCapability, c)
}

// All returns every registered provider.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}
