package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"sessionId":"vs-1","verdict":"verified"}`)
	sig := Sign(body, "secret-1")

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature(body, sig, "secret-1"))
}

func TestSignatureIsDeterministic(t *testing.T) {
	body := []byte("payload")
	assert.Equal(t, Sign(body, "k"), Sign(body, "k"))
}

func TestVerifyRejects(t *testing.T) {
	body := []byte(`{"sessionId":"vs-1"}`)
	sig := Sign(body, "secret-1")

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(body, sig, "secret-2"))
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[len(tampered)-2] ^= 0x01
		assert.False(t, VerifySignature(tampered, sig, "secret-1"))
	})

	t.Run("flipped signature byte", func(t *testing.T) {
		bad := []byte(sig)
		if bad[len(bad)-1] == 'a' {
			bad[len(bad)-1] = 'b'
		} else {
			bad[len(bad)-1] = 'a'
		}
		assert.False(t, VerifySignature(body, string(bad), "secret-1"))
	})

	t.Run("missing prefix", func(t *testing.T) {
		assert.False(t, VerifySignature(body, strings.TrimPrefix(sig, "sha256="), "secret-1"))
	})

	t.Run("not hex", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "sha256=zzzz", "secret-1"))
	})

	t.Run("empty header", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "", "secret-1"))
	})
}
