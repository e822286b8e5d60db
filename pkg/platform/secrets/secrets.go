// Package secrets derives the per-provider webhook signing secrets.
package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	dErrors "kycgate/pkg/domain-errors"
)

// DeriveWebhookSecret derives the per-provider webhook signing secret from the
// master secret using HKDF-SHA256. Each provider gets an independent secret so
// a leaked provider key cannot forge callbacks for another provider.
func DeriveWebhookSecret(masterSecret, providerID string) (string, error) {
	if masterSecret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "master secret cannot be empty")
	}
	if providerID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "provider id cannot be empty")
	}
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("webhook:"+providerID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return "", fmt.Errorf("could not derive webhook secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
