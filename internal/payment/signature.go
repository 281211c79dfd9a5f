package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Webhook payloads are signed by the processor with HMAC-SHA256 over
// the raw request body. Verification happens in middleware before the
// reconciler ever sees the event; unsigned or tampered payloads are
// rejected at the door.

// Sign computes the hex-encoded HMAC-SHA256 signature of body under
// secret. Exposed so tests and local tooling can produce valid
// deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
// Comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
