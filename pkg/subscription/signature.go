package subscription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Webhook signature headers, following the scheme used by Stripe, GitHub
// and most webhook providers: HMAC-SHA256 over "timestamp.payload", with
// the timestamp bound into the signature to prevent replay.
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

// DefaultSignatureMaxAge bounds how stale a signed webhook may be.
const DefaultSignatureMaxAge = 5 * time.Minute

// SignPayload computes the hex HMAC-SHA256 signature for a payload at the
// given unix timestamp. Exposed for tests and for simulating the provider.
func SignPayload(secret string, payload []byte, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", timestamp, payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a webhook payload against its signature headers.
// Uses constant-time comparison and rejects timestamps older than maxAge.
// Payloads must never be trusted before this check passes.
func VerifySignature(secret string, payload []byte, signature string, timestamp int64, maxAge time.Duration) error {
	if secret == "" {
		return ErrWebhookSecretRequired
	}
	if signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrSignatureVerification)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > maxAge || age < -maxAge {
			return fmt.Errorf("%w: %v", ErrWebhookTimestampTooOld, age)
		}
	}

	expected := SignPayload(secret, payload, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureVerification
	}
	return nil
}
