package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

// DefaultTrialDays is the trial window granted at signup.
const DefaultTrialDays = 14

// TrialNotifier sends the trial-ending notice. Delivery is best effort.
type TrialNotifier interface {
	TrialEnding(ctx context.Context, email string, daysLeft int) error
}

// Service manages the subscription record lifecycle:
//
//	trial -> free (window lapses) or pro (checkout)
//	free  -> pro
//	pro   -> free (cancel), paused, payment_failed
//	paused -> pro (resume) or free
//
// Transitions come from three places only: the time-based trial-expiry
// check (lazy on read plus the sweep), client-initiated checkout with an
// optimistic local update, and the webhook reconciler, which is
// authoritative.
type Service struct {
	store         Store
	provider      Provider
	trialNotifier TrialNotifier
	log           *slog.Logger
	now           func() time.Time
	trialDays     int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTrialDays overrides the signup trial window length.
func WithTrialDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.trialDays = days
		}
	}
}

// WithTrialNotifier enables trial-ending notification emails.
func WithTrialNotifier(n TrialNotifier) ServiceOption {
	return func(s *Service) { s.trialNotifier = n }
}

// WithClock overrides the clock for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a subscription service. Panics on nil store to fail
// fast during initialization. The provider may be nil when only local
// lifecycle operations are needed (e.g. in tests).
func NewService(store Store, provider Provider, log *slog.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:     store,
		provider:  provider,
		log:       log,
		now:       time.Now,
		trialDays: DefaultTrialDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartTrial creates the record for a new user: trial plan, active status,
// and a trial window starting now.
func (s *Service) StartTrial(ctx context.Context, userID uuid.UUID, email string) (*Record, error) {
	if _, err := s.store.Get(ctx, userID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	record := &Record{
		UserID:        userID,
		Email:         email,
		Plan:          plans.PlanTrial,
		Status:        StatusActive,
		TrialStartsAt: now,
		TrialEndsAt:   now.AddDate(0, 0, s.trialDays),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Current returns the user's record with trial expiry applied lazily: a
// trial whose window has closed is downgraded to free before it is
// returned. If the downgrade write fails the downgraded view is still
// returned, so entitlement checks never see a stale trial; the next read
// retries the write.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*Record, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if record.Plan == plans.PlanTrial && !now.Before(record.TrialEndsAt) {
		record.Plan = plans.PlanFree
		record.UpdatedAt = now
		if err := s.store.Save(ctx, record); err != nil {
			s.log.WarnContext(ctx, "failed to persist trial downgrade",
				slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}
	return record, nil
}

// SweepExpiredTrials downgrades every lapsed trial to free in one pass.
// Complements the lazy check in Current for users who never come back.
// Returns the number of records downgraded.
func (s *Service) SweepExpiredTrials(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expired, err := s.store.ExpiredTrials(ctx, now)
	if err != nil {
		return 0, err
	}

	downgraded := 0
	for _, record := range expired {
		record.Plan = plans.PlanFree
		record.UpdatedAt = now
		if err := s.store.Save(ctx, record); err != nil {
			s.log.ErrorContext(ctx, "trial sweep failed to save downgrade",
				slog.String("user_id", record.UserID.String()), slog.Any("error", err))
			continue
		}
		downgraded++
	}
	return downgraded, nil
}

// NotifyEndingTrials emails users whose trial window closes within the
// given duration. Each user is notified once: the record is marked before
// the sweep moves on, so a failed send for one user never blocks the rest.
// Returns the number of notices sent.
func (s *Service) NotifyEndingTrials(ctx context.Context, within time.Duration) (int, error) {
	if s.trialNotifier == nil {
		return 0, nil
	}

	now := s.now().UTC()
	ending, err := s.store.TrialsEndingBy(ctx, now.Add(within))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, record := range ending {
		// Already-lapsed trials belong to the downgrade sweep.
		if !record.IsTrialActiveAt(now) || record.Email == "" {
			continue
		}
		if err := s.trialNotifier.TrialEnding(ctx, record.Email, record.TrialDaysRemainingAt(now)); err != nil {
			s.log.ErrorContext(ctx, "failed to send trial-ending notice",
				slog.String("user_id", record.UserID.String()), slog.Any("error", err))
			continue
		}
		record.TrialNoticeSentAt = &now
		record.UpdatedAt = now
		if err := s.store.Save(ctx, record); err != nil {
			s.log.ErrorContext(ctx, "failed to mark trial notice as sent",
				slog.String("user_id", record.UserID.String()), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Checkout creates a hosted checkout session for the pro plan and records
// the billing customer mapping so the webhook reconciler can find the user
// once provider events start arriving.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, priceID, successURL string) (*CheckoutLink, error) {
	if s.provider == nil {
		return nil, ErrProviderError
	}

	record, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record.IsProActive() {
		return nil, ErrAlreadyExists
	}

	// The mapping must exist before the webhook lands; a delivery that
	// beats this write is the race the reconciler tolerates by no-opping.
	if record.BillingCustomerID == "" {
		record.BillingCustomerID = userID.String()
		record.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, record); err != nil {
			return nil, err
		}
	}

	return s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PriceID:    priceID,
		CustomerID: record.BillingCustomerID,
		Email:      record.Email,
		SuccessURL: successURL,
	})
}

// ActivatePro applies the optimistic local update after a successful
// checkout redirect. The webhook remains authoritative and will overwrite
// this with the same values.
func (s *Service) ActivatePro(ctx context.Context, userID uuid.UUID, customerID, subscriptionID string) (*Record, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record.Plan = plans.PlanPro
	record.Status = StatusActive
	record.BillingCustomerID = customerID
	record.BillingSubscriptionID = subscriptionID
	if record.SubscriptionStartsAt == nil {
		record.SubscriptionStartsAt = &now
	}
	record.UpdatedAt = now

	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// PortalLink returns the provider's customer portal for the user.
func (s *Service) PortalLink(ctx context.Context, userID uuid.UUID) (*PortalLink, error) {
	if s.provider == nil {
		return nil, ErrProviderError
	}

	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record.BillingSubscriptionID == "" {
		return nil, ErrNoBillingSubscription
	}
	return s.provider.CustomerPortalLink(ctx, record.BillingCustomerID, record.BillingSubscriptionID)
}

// Cancel asks the provider to cancel the user's subscription. The local
// plan flips to free only when the cancellation webhook arrives.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) error {
	if s.provider == nil {
		return ErrProviderError
	}

	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record.BillingSubscriptionID == "" {
		return ErrNoBillingSubscription
	}
	return s.provider.CancelSubscription(ctx, record.BillingSubscriptionID)
}

// Resume asks the provider to resume a paused subscription.
func (s *Service) Resume(ctx context.Context, userID uuid.UUID) error {
	if s.provider == nil {
		return ErrProviderError
	}

	record, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record.BillingSubscriptionID == "" {
		return ErrNoBillingSubscription
	}
	return s.provider.ResumeSubscription(ctx, record.BillingSubscriptionID)
}
