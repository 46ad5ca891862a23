package subscription

import (
	"context"
	"time"
)

// Provider is the outbound billing provider surface. The provider hosts
// checkout and the customer portal, keeping card data out of this system.
// Implementations use the official SDK and absorb provider quirks.
type Provider interface {
	// CreateCheckoutLink creates a hosted checkout session.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// CustomerPortalLink returns a temporary link where the user can manage
	// payment methods and plan changes.
	CustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*PortalLink, error)

	// CancelSubscription asks the provider to cancel. Local state is not
	// touched here: the authoritative change arrives as a webhook.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ResumeSubscription asks the provider to resume a paused subscription.
	ResumeSubscription(ctx context.Context, subscriptionID string) error
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PriceID    string // provider's price identifier for the pro plan
	CustomerID string // our user ID, carried through provider custom data
	Email      string // optional billing email prefill
	SuccessURL string // redirect after successful payment
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL       string    `json:"url"`
	CancelURL string    `json:"cancel_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
