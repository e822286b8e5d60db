// Package webhook authenticates and applies asynchronous verdict callbacks
// from verification providers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign computes the signature header value for a raw request body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a provided signature header against the raw body.
// The comparison is constant time. Headers without the sha256= prefix, or
// with a digest that is not valid hex of the right length, never match.
func VerifySignature(body []byte, provided, secret string) bool {
	if !strings.HasPrefix(provided, signaturePrefix) {
		return false
	}
	digest, err := hex.DecodeString(provided[len(signaturePrefix):])
	if err != nil || len(digest) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(digest, mac.Sum(nil))
}
