// Package webhook implements signed outbound webhook delivery with a
// database-backed retry queue, and verification of inbound webhook
// signatures.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix is the scheme tag carried in signature headers.
const SignaturePrefix = "sha256="

// GenerateSignature generates a hex HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader returns the full signature header value:
// sha256=<hex HMAC-SHA256 of payload>.
func SignatureHeader(payload []byte, secret string) string {
	return SignaturePrefix + GenerateSignature(payload, secret)
}

// VerifySignature verifies a hex HMAC-SHA256 signature in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// VerifyInbound checks an inbound webhook signature header against the
// shared secret. Two forms are accepted: sha256=<hex HMAC of body>, or the
// literal secret for senders that only support a static header. Both
// comparisons are constant time.
func VerifyInbound(body []byte, header, secret string) bool {
	if secret == "" {
		// Verification not configured
		return true
	}
	if header == "" {
		return false
	}
	if strings.HasPrefix(header, SignaturePrefix) {
		return VerifySignature(body, strings.TrimPrefix(header, SignaturePrefix), secret)
	}
	return hmac.Equal([]byte(header), []byte(secret))
}
