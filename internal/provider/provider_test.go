package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	id   string
	caps []Capability
}

func (p *stubProvider) ID() string                 { return p.id }
func (p *stubProvider) Capabilities() []Capability { return p.caps }
func (p *stubProvider) Verify(context.Context, Request) (*Result, error) {
	return &Result{RawStatus: "success"}, nil
}
func (p *stubProvider) Health(context.Context) error { return nil }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubProvider{id: "alpha", caps: []Capability{CapabilityOTPVerify}}))
	require.NoError(t, reg.Register(&stubProvider{id: "beta", caps: []Capability{CapabilityVideoKYCInitiate}}))

	t.Run("get by id", func(t *testing.T) {
		p, ok := reg.Get("alpha")
		require.True(t, ok)
		assert.Equal(t, "alpha", p.ID())

		_, ok = reg.Get("missing")
		assert.False(t, ok)
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		err := reg.Register(&stubProvider{id: "alpha"})
		assert.Error(t, err)
	})

	t.Run("lookup by capability", func(t *testing.T) {
		p, err := reg.ForCapability(CapabilityVideoKYCInitiate)
		require.NoError(t, err)
		assert.Equal(t, "beta", p.ID())
	})

	t.Run("capability nobody offers", func(t *testing.T) {
		_, err := reg.ForCapability(CapabilityBiometricMatch)
		assert.ErrorIs(t, err, ErrNoProviderForCapability)
	})
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid otp", Request{Capability: CapabilityOTPVerify, UserRef: "u", OTPCode: "482913"}, false},
		{"otp not numeric", Request{Capability: CapabilityOTPVerify, UserRef: "u", OTPCode: "12ab56"}, true},
		{"otp missing user", Request{Capability: CapabilityOTPVerify, OTPCode: "123456"}, true},
		{"valid ocr", Request{Capability: CapabilityDocumentOCR, DocumentPayload: "doc"}, false},
		{"ocr without document", Request{Capability: CapabilityDocumentOCR}, true},
		{"biometric needs both images", Request{Capability: CapabilityBiometricMatch, DocumentPayload: "doc"}, true},
		{"valid video", Request{Capability: CapabilityVideoKYCInitiate, UserRef: "u"}, false},
		{"unknown capability", Request{Capability: Capability("teleport")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
