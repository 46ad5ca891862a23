package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	t.Run("subscription created", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_123",
			"event_type": "subscription.created",
			"data": {
				"subscription_id": "sub_1",
				"customer_id": "cus_9",
				"status": "active"
			}
		}`)

		event, err := subscription.ParseEvent(payload)
		require.NoError(t, err)

		created, ok := event.(subscription.SubscriptionCreated)
		require.True(t, ok)
		assert.Equal(t, "evt_123", created.ID)
		assert.Equal(t, "sub_1", created.SubscriptionID)
		assert.Equal(t, "cus_9", created.CustomerID)
		assert.Equal(t, "active", created.Status)
	})

	t.Run("payment succeeded with billing date", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_456",
			"event_type": "payment.succeeded",
			"data": {
				"subscription_id": "sub_1",
				"customer_id": "cus_9",
				"amount": 1900,
				"currency": "USD",
				"next_billing_date": "2025-07-15T00:00:00Z"
			}
		}`)

		event, err := subscription.ParseEvent(payload)
		require.NoError(t, err)

		paid, ok := event.(subscription.PaymentSucceeded)
		require.True(t, ok)
		assert.Equal(t, int64(1900), paid.Amount)
		assert.Equal(t, "USD", paid.Currency)
		require.NotNil(t, paid.NextBillingDate)
		assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), paid.NextBillingDate.UTC())
	})

	t.Run("payment failed carries the reason", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_type": "payment.failed",
			"data": {"customer_id": "cus_9", "failure_reason": "card_declined"}
		}`)

		event, err := subscription.ParseEvent(payload)
		require.NoError(t, err)

		failed, ok := event.(subscription.PaymentFailed)
		require.True(t, ok)
		assert.Equal(t, "card_declined", failed.FailureReason)
	})

	t.Run("accepts both cancelled spellings", func(t *testing.T) {
		t.Parallel()

		for _, eventType := range []string{"subscription.cancelled", "subscription.canceled"} {
			event, err := subscription.ParseEvent([]byte(`{"event_type": "` + eventType + `", "data": {}}`))
			require.NoError(t, err)
			assert.IsType(t, subscription.SubscriptionCancelled{}, event)
		}
	})

	t.Run("unknown event type", func(t *testing.T) {
		t.Parallel()

		_, err := subscription.ParseEvent([]byte(`{"event_type": "customer.deleted", "data": {}}`))
		assert.ErrorIs(t, err, subscription.ErrUnknownEventType)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		_, err := subscription.ParseEvent([]byte(`{not json`))
		assert.ErrorIs(t, err, subscription.ErrInvalidWebhookPayload)
	})

	t.Run("missing event type", func(t *testing.T) {
		t.Parallel()

		_, err := subscription.ParseEvent([]byte(`{"data": {"customer_id": "cus_9"}}`))
		assert.ErrorIs(t, err, subscription.ErrInvalidWebhookPayload)
	})

	t.Run("invalid billing date", func(t *testing.T) {
		t.Parallel()

		_, err := subscription.ParseEvent([]byte(`{
			"event_type": "subscription.updated",
			"data": {"next_billing_date": "tomorrow"}
		}`))
		assert.ErrorIs(t, err, subscription.ErrInvalidWebhookPayload)
	})
}
