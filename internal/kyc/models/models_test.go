package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

func TestParseTier(t *testing.T) {
	t.Run("accepts known tiers", func(t *testing.T) {
		for _, s := range []string{"none", "basic", "full"} {
			tier, err := ParseTier(s)
			require.NoError(t, err)
			assert.True(t, tier.IsValid())
		}
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		_, err := ParseTier("platinum")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("none is not submittable", func(t *testing.T) {
		assert.False(t, TierNone.Submittable())
		assert.True(t, TierBasic.Submittable())
		assert.True(t, TierFull.Submittable())
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusVerified.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestNewDocument(t *testing.T) {
	now := time.Now()
	userID := id.NewUserID()

	t.Run("valid document starts pending", func(t *testing.T) {
		doc, err := NewDocument(userID, TierBasic, DocNationalID, "ZGF0YQ==", now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, doc.Status)
		assert.False(t, doc.Superseded)
		assert.Nil(t, doc.ReviewerID)
		assert.False(t, doc.ID.IsNil())
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		_, err := NewDocument(userID, TierBasic, DocNationalID, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects tier none", func(t *testing.T) {
		_, err := NewDocument(userID, TierNone, DocNationalID, "ZGF0YQ==", now)
		require.Error(t, err)
	})

	t.Run("rejects nil user", func(t *testing.T) {
		_, err := NewDocument(id.UserID{}, TierBasic, DocNationalID, "ZGF0YQ==", now)
		require.Error(t, err)
	})
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	sess := &Session{
		SessionID: "vkyc-1",
		UserID:    id.NewUserID(),
		Status:    SessionActive,
		ExpiresAt: now.Add(30 * time.Minute),
	}

	assert.False(t, sess.Expired(now))
	assert.False(t, sess.Expired(now.Add(30*time.Minute)))
	assert.True(t, sess.Expired(now.Add(30*time.Minute+time.Second)))
}

func TestTierConfigRequires(t *testing.T) {
	cfg := &TierConfig{
		Country:           "IN",
		Tier:              TierBasic,
		RequiredDocuments: []DocumentType{DocNationalID, DocTaxID},
	}
	assert.True(t, cfg.Requires(DocNationalID))
	assert.True(t, cfg.Requires(DocTaxID))
	assert.False(t, cfg.Requires(DocPassport))
}
