package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
)

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	secret := "whsec_test_secret"
	payload := []byte(`{"event_type":"subscription.created","data":{}}`)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		require.NoError(t, subscription.VerifySignature(secret, payload, sig, ts, subscription.DefaultSignatureMaxAge))
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Unix()
		sig := subscription.SignPayload("whsec_other", payload, ts)
		err := subscription.VerifySignature(secret, payload, sig, ts, subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrSignatureVerification)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		err := subscription.VerifySignature(secret, []byte(`{"event_type":"payment.failed"}`), sig, ts, subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrSignatureVerification)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Add(-time.Hour).Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		err := subscription.VerifySignature(secret, payload, sig, ts, subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrWebhookTimestampTooOld)
	})

	t.Run("timestamp too far in the future", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Add(time.Hour).Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		err := subscription.VerifySignature(secret, payload, sig, ts, subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrWebhookTimestampTooOld)
	})

	t.Run("max age zero disables the window", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Add(-time.Hour).Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		require.NoError(t, subscription.VerifySignature(secret, payload, sig, ts, 0))
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()

		err := subscription.VerifySignature(secret, payload, "", time.Now().Unix(), subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrSignatureVerification)
	})

	t.Run("empty secret is a configuration error", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().Unix()
		sig := subscription.SignPayload(secret, payload, ts)
		err := subscription.VerifySignature("", payload, sig, ts, subscription.DefaultSignatureMaxAge)
		assert.ErrorIs(t, err, subscription.ErrWebhookSecretRequired)
	})
}
