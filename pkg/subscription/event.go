package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventMeta carries the fields common to every billing webhook event.
type EventMeta struct {
	ID             string // provider event ID, used for replay dedupe
	Type           string // original provider event type string
	SubscriptionID string
	CustomerID     string
}

// Event is the closed set of billing webhook events. It is a sealed
// interface: only the concrete types in this package implement it, so the
// reconciler's type switch covers every kind and a new kind cannot slip
// through a default branch unnoticed.
type Event interface {
	Meta() EventMeta
	sealed()
}

type (
	// SubscriptionCreated activates a paid subscription for the user.
	SubscriptionCreated struct {
		EventMeta
		Status string
	}

	// SubscriptionUpdated carries a provider-side status change.
	SubscriptionUpdated struct {
		EventMeta
		Status          string
		NextBillingDate *time.Time
	}

	// SubscriptionCancelled ends the paid subscription.
	SubscriptionCancelled struct {
		EventMeta
	}

	// SubscriptionPaused suspends billing without cancelling.
	SubscriptionPaused struct {
		EventMeta
	}

	// SubscriptionResumed reactivates a paused subscription.
	SubscriptionResumed struct {
		EventMeta
	}

	// PaymentSucceeded confirms a renewal charge.
	PaymentSucceeded struct {
		EventMeta
		Amount          int64 // smallest currency unit
		Currency        string
		NextBillingDate *time.Time
	}

	// PaymentFailed reports a failed renewal charge.
	PaymentFailed struct {
		EventMeta
		FailureReason string
	}
)

func (e SubscriptionCreated) Meta() EventMeta   { return e.EventMeta }
func (e SubscriptionUpdated) Meta() EventMeta   { return e.EventMeta }
func (e SubscriptionCancelled) Meta() EventMeta { return e.EventMeta }
func (e SubscriptionPaused) Meta() EventMeta    { return e.EventMeta }
func (e SubscriptionResumed) Meta() EventMeta   { return e.EventMeta }
func (e PaymentSucceeded) Meta() EventMeta      { return e.EventMeta }
func (e PaymentFailed) Meta() EventMeta         { return e.EventMeta }

func (SubscriptionCreated) sealed()   {}
func (SubscriptionUpdated) sealed()   {}
func (SubscriptionCancelled) sealed() {}
func (SubscriptionPaused) sealed()    {}
func (SubscriptionResumed) sealed()   {}
func (PaymentSucceeded) sealed()      {}
func (PaymentFailed) sealed()         {}

// eventEnvelope matches the billing provider's webhook body.
type eventEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		SubscriptionID  string `json:"subscription_id"`
		CustomerID      string `json:"customer_id"`
		Status          string `json:"status"`
		NextBillingDate string `json:"next_billing_date"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		FailureReason   string `json:"failure_reason"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload into one of the closed event types.
// An event type outside the known set returns ErrUnknownEventType; callers
// log and acknowledge it rather than retrying, since redelivery cannot fix
// an unrecognized kind.
func ParseEvent(payload []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if envelope.EventType == "" {
		return nil, errors.Join(ErrInvalidWebhookPayload, errors.New("event_type is required"))
	}

	meta := EventMeta{
		ID:             envelope.EventID,
		Type:           envelope.EventType,
		SubscriptionID: envelope.Data.SubscriptionID,
		CustomerID:     envelope.Data.CustomerID,
	}

	var nextBilling *time.Time
	if envelope.Data.NextBillingDate != "" {
		parsed, err := time.Parse(time.RFC3339, envelope.Data.NextBillingDate)
		if err != nil {
			return nil, errors.Join(ErrInvalidWebhookPayload,
				fmt.Errorf("invalid next_billing_date: %w", err))
		}
		nextBilling = &parsed
	}

	switch envelope.EventType {
	case "subscription.created":
		return SubscriptionCreated{EventMeta: meta, Status: envelope.Data.Status}, nil
	case "subscription.updated":
		return SubscriptionUpdated{EventMeta: meta, Status: envelope.Data.Status, NextBillingDate: nextBilling}, nil
	case "subscription.cancelled", "subscription.canceled":
		return SubscriptionCancelled{EventMeta: meta}, nil
	case "subscription.paused":
		return SubscriptionPaused{EventMeta: meta}, nil
	case "subscription.resumed":
		return SubscriptionResumed{EventMeta: meta}, nil
	case "payment.succeeded":
		return PaymentSucceeded{
			EventMeta:       meta,
			Amount:          envelope.Data.Amount,
			Currency:        envelope.Data.Currency,
			NextBillingDate: nextBilling,
		}, nil
	case "payment.failed":
		return PaymentFailed{EventMeta: meta, FailureReason: envelope.Data.FailureReason}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, envelope.EventType)
	}
}
