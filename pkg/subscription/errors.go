package subscription

import "errors"

var (
	ErrNotFound      = errors.New("subscription not found")
	ErrAlreadyExists = errors.New("subscription already exists")

	ErrFailedToLoadSubscription = errors.New("failed to load subscription")
	ErrFailedToSaveSubscription = errors.New("failed to save subscription")

	ErrNoBillingSubscription = errors.New("no billing subscription attached")
	ErrProviderError         = errors.New("billing provider error")
	ErrNoCheckoutURL         = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL           = errors.New("no portal URL returned from provider")

	ErrUnknownEventType         = errors.New("unknown webhook event type")
	ErrInvalidWebhookPayload    = errors.New("invalid webhook payload")
	ErrSignatureVerification    = errors.New("webhook signature verification failed")
	ErrWebhookSecretRequired    = errors.New("webhook secret is required")
	ErrWebhookTimestampTooOld   = errors.New("webhook signature timestamp outside tolerance")
	ErrWebhookDedupeUnavailable = errors.New("webhook dedupe store unavailable")
)
