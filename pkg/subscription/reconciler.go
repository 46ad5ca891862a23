package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

// Notifier sends user-facing billing notifications. Delivery is best
// effort: a failed send never fails the reconciliation.
type Notifier interface {
	PaymentFailed(ctx context.Context, email, reason string) error
}

// Reconciler applies billing webhook events to subscription records.
//
// Events arrive at least once and in no guaranteed order. Every handler
// writes absolute values, never deltas, so replaying an event leaves the
// record in the same state as applying it once. That overwrite-only rule is
// a deliberate invariant; any new handler must preserve it. Out-of-order
// delivery (a cancel overtaken by a delayed create) is an accepted risk:
// the provider payload carries no sequence number to compare against.
type Reconciler struct {
	store    Store
	dedupe   Deduper
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDeduper adds a replay filter keyed by provider event ID.
func WithDeduper(d Deduper) ReconcilerOption {
	return func(r *Reconciler) { r.dedupe = d }
}

// WithNotifier enables billing notification emails.
func WithNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = n }
}

// WithReconcilerClock overrides the clock for tests.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a webhook reconciler over the given store.
func NewReconciler(store Store, log *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Reconciler{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle applies one event. A customer ID with no matching record is logged
// and dropped, not an error: it usually means the webhook raced the
// checkout flow and the provider will redeliver.
func (r *Reconciler) Handle(ctx context.Context, event Event) error {
	meta := event.Meta()

	if r.dedupe != nil && meta.ID != "" {
		seen, err := r.dedupe.AlreadySeen(ctx, meta.ID)
		if err != nil {
			// Handlers are idempotent, so a dedupe outage degrades to
			// at-least-once processing instead of dropping events.
			r.log.WarnContext(ctx, "webhook dedupe unavailable, processing anyway",
				slog.String("event_id", meta.ID), slog.Any("error", err))
		} else if seen {
			r.log.InfoContext(ctx, "duplicate webhook event skipped",
				slog.String("event_id", meta.ID), slog.String("event_type", meta.Type))
			return nil
		}
	}

	record, err := r.store.GetByCustomerID(ctx, meta.CustomerID)
	if errors.Is(err, ErrNotFound) {
		r.log.WarnContext(ctx, "webhook event for unknown billing customer",
			slog.String("customer_id", meta.CustomerID), slog.String("event_type", meta.Type))
		return nil
	}
	if err != nil {
		return err
	}

	now := r.now().UTC()

	switch e := event.(type) {
	case SubscriptionCreated:
		record.Plan = plans.PlanPro
		record.Status = StatusActive
		record.BillingSubscriptionID = e.SubscriptionID
		if record.SubscriptionStartsAt == nil {
			record.SubscriptionStartsAt = &now
		}
		record.SubscriptionEndsAt = nil

	case SubscriptionUpdated:
		if status := mapProviderStatus(e.Status); status != "" {
			record.Status = status
		}
		if e.NextBillingDate != nil {
			record.SubscriptionEndsAt = e.NextBillingDate
		}

	case SubscriptionCancelled:
		record.Plan = plans.PlanFree
		record.Status = StatusInactive
		record.BillingSubscriptionID = ""
		if record.SubscriptionEndsAt == nil {
			record.SubscriptionEndsAt = &now
		}

	case SubscriptionPaused:
		record.Status = StatusPaused

	case SubscriptionResumed:
		record.Plan = plans.PlanPro
		record.Status = StatusActive

	case PaymentSucceeded:
		record.Status = StatusActive
		if e.NextBillingDate != nil {
			record.SubscriptionEndsAt = e.NextBillingDate
		}

	case PaymentFailed:
		// Plan is left untouched: access drops only if the provider
		// eventually cancels, which arrives as its own event.
		record.Status = StatusPaymentFailed
		if r.notifier != nil && record.Email != "" {
			if err := r.notifier.PaymentFailed(ctx, record.Email, e.FailureReason); err != nil {
				r.log.ErrorContext(ctx, "failed to send payment-failed notification",
					slog.String("user_id", record.UserID.String()), slog.Any("error", err))
			}
		}

	default:
		// Unreachable while Event stays sealed; kept so an unhandled kind
		// fails loudly instead of silently acknowledging.
		return fmt.Errorf("%w: %T", ErrUnknownEventType, event)
	}

	record.UpdatedAt = now
	if err := r.store.Save(ctx, record); err != nil {
		return err
	}

	r.log.InfoContext(ctx, "webhook event applied",
		slog.String("event_type", meta.Type),
		slog.String("user_id", record.UserID.String()),
		slog.String("plan", string(record.Plan)),
		slog.String("status", string(record.Status)))
	return nil
}

// mapProviderStatus normalizes provider status strings to local statuses.
// Unknown strings map to empty, leaving the stored status untouched.
func mapProviderStatus(providerStatus string) Status {
	switch providerStatus {
	case "active", "trialing":
		return StatusActive
	case "paused":
		return StatusPaused
	case "past_due", "payment_failed":
		return StatusPaymentFailed
	case "canceled", "cancelled", "inactive", "expired":
		return StatusInactive
	}
	return ""
}
