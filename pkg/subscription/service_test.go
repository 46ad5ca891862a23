package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
)

type fakeProvider struct {
	checkoutReqs []subscription.CheckoutRequest
	cancelled    []string
	resumed      []string
	checkoutErr  error
}

func (p *fakeProvider) CreateCheckoutLink(_ context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	p.checkoutReqs = append(p.checkoutReqs, req)
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	return &subscription.CheckoutLink{URL: "https://checkout.example.com/s/1", SessionID: "txn_1"}, nil
}

func (p *fakeProvider) CustomerPortalLink(context.Context, string, string) (*subscription.PortalLink, error) {
	return &subscription.PortalLink{URL: "https://portal.example.com/s/1"}, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, subscriptionID string) error {
	p.cancelled = append(p.cancelled, subscriptionID)
	return nil
}

func (p *fakeProvider) ResumeSubscription(_ context.Context, subscriptionID string) error {
	p.resumed = append(p.resumed, subscriptionID)
	return nil
}

func TestService_StartTrial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("creates a fourteen day trial", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, nil, nil,
			subscription.WithClock(func() time.Time { return now }))

		userID := uuid.New()
		record, err := svc.StartTrial(ctx, userID, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, plans.PlanTrial, record.Plan)
		assert.Equal(t, subscription.StatusActive, record.Status)
		assert.Equal(t, now, record.TrialStartsAt)
		assert.Equal(t, now.AddDate(0, 0, 14), record.TrialEndsAt)
		assert.Equal(t, 14, record.TrialDaysRemainingAt(now))
	})

	t.Run("second signup is rejected", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, nil, nil)

		userID := uuid.New()
		_, err := svc.StartTrial(ctx, userID, "user@example.com")
		require.NoError(t, err)

		_, err = svc.StartTrial(ctx, userID, "user@example.com")
		assert.ErrorIs(t, err, subscription.ErrAlreadyExists)
	})

	t.Run("custom trial window", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), nil, nil,
			subscription.WithClock(func() time.Time { return now }),
			subscription.WithTrialDays(30))

		record, err := svc.StartTrial(ctx, uuid.New(), "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, 30), record.TrialEndsAt)
	})
}

func TestService_Current(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("lazy downgrade once the window closes", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		now := start
		svc := subscription.NewService(store, nil, nil,
			subscription.WithClock(func() time.Time { return now }))

		userID := uuid.New()
		_, err := svc.StartTrial(ctx, userID, "user@example.com")
		require.NoError(t, err)

		// Day 13: still on trial.
		now = start.AddDate(0, 0, 13)
		record, err := svc.Current(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanTrial, record.Plan)
		assert.True(t, record.IsTrialActiveAt(now))

		// Day 14: downgraded and persisted.
		now = start.AddDate(0, 0, 14)
		record, err = svc.Current(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanFree, record.Plan)

		stored, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanFree, stored.Plan)
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), nil, nil)
		_, err := svc.Current(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})
}

func TestService_SweepExpiredTrials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := start

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, nil, nil,
		subscription.WithClock(func() time.Time { return now }))

	expired := uuid.New()
	fresh := uuid.New()
	_, err := svc.StartTrial(ctx, expired, "old@example.com")
	require.NoError(t, err)

	now = start.AddDate(0, 0, 10)
	_, err = svc.StartTrial(ctx, fresh, "new@example.com")
	require.NoError(t, err)

	now = start.AddDate(0, 0, 15)
	downgraded, err := svc.SweepExpiredTrials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, downgraded)

	record, err := store.Get(ctx, expired)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, record.Plan)

	record, err = store.Get(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanTrial, record.Plan)

	// Second sweep finds nothing new.
	downgraded, err = svc.SweepExpiredTrials(ctx)
	require.NoError(t, err)
	assert.Zero(t, downgraded)
}

type recordingTrialNotifier struct {
	emails   []string
	daysLeft []int
}

func (n *recordingTrialNotifier) TrialEnding(_ context.Context, email string, daysLeft int) error {
	n.emails = append(n.emails, email)
	n.daysLeft = append(n.daysLeft, daysLeft)
	return nil
}

func TestService_NotifyEndingTrials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := start

	store := subscription.NewMemoryStore()
	notifier := &recordingTrialNotifier{}
	svc := subscription.NewService(store, nil, nil,
		subscription.WithClock(func() time.Time { return now }),
		subscription.WithTrialNotifier(notifier))

	endingSoon := uuid.New()
	_, err := svc.StartTrial(ctx, endingSoon, "soon@example.com")
	require.NoError(t, err)

	now = start.AddDate(0, 0, 7)
	fresh := uuid.New()
	_, err = svc.StartTrial(ctx, fresh, "fresh@example.com")
	require.NoError(t, err)

	// Day 12: the first trial ends in 2 days, the second in 9.
	now = start.AddDate(0, 0, 12)
	sent, err := svc.NotifyEndingTrials(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"soon@example.com"}, notifier.emails)
	assert.Equal(t, []int{2}, notifier.daysLeft)

	// Second pass sends nothing: the record is marked.
	sent, err = svc.NotifyEndingTrials(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestService_Checkout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("records the billing customer mapping", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		provider := &fakeProvider{}
		svc := subscription.NewService(store, provider, nil)

		userID := uuid.New()
		_, err := svc.StartTrial(ctx, userID, "user@example.com")
		require.NoError(t, err)

		link, err := svc.Checkout(ctx, userID, "pri_123", "https://app.example.com/done")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example.com/s/1", link.URL)

		require.Len(t, provider.checkoutReqs, 1)
		req := provider.checkoutReqs[0]
		assert.Equal(t, "pri_123", req.PriceID)
		assert.Equal(t, userID.String(), req.CustomerID)
		assert.Equal(t, "user@example.com", req.Email)

		record, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), record.BillingCustomerID)
	})

	t.Run("already pro", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, &fakeProvider{}, nil)

		userID := uuid.New()
		require.NoError(t, store.Save(ctx, &subscription.Record{
			UserID: userID,
			Plan:   plans.PlanPro,
			Status: subscription.StatusActive,
		}))

		_, err := svc.Checkout(ctx, userID, "pri_123", "")
		assert.ErrorIs(t, err, subscription.ErrAlreadyExists)
	})

	t.Run("no provider configured", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), nil, nil)
		_, err := svc.Checkout(ctx, uuid.New(), "pri_123", "")
		assert.ErrorIs(t, err, subscription.ErrProviderError)
	})
}

func TestService_ActivatePro(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, nil, nil,
		subscription.WithClock(func() time.Time { return now }))

	userID := uuid.New()
	_, err := svc.StartTrial(ctx, userID, "user@example.com")
	require.NoError(t, err)

	record, err := svc.ActivatePro(ctx, userID, "cus_9", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPro, record.Plan)
	assert.Equal(t, subscription.StatusActive, record.Status)
	assert.Equal(t, "cus_9", record.BillingCustomerID)
	assert.Equal(t, "sub_1", record.BillingSubscriptionID)
	require.NotNil(t, record.SubscriptionStartsAt)
	assert.Equal(t, now, *record.SubscriptionStartsAt)
	assert.True(t, record.IsProActive())
}

func TestService_CancelResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store := subscription.NewMemoryStore()
	provider := &fakeProvider{}
	svc := subscription.NewService(store, provider, nil)

	userID := uuid.New()
	require.NoError(t, store.Save(ctx, &subscription.Record{
		UserID:                userID,
		Plan:                  plans.PlanPro,
		Status:                subscription.StatusActive,
		BillingCustomerID:     "cus_9",
		BillingSubscriptionID: "sub_1",
	}))

	require.NoError(t, svc.Cancel(ctx, userID))
	assert.Equal(t, []string{"sub_1"}, provider.cancelled)

	// Cancel is provider-only: the local plan flips on the webhook.
	record, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPro, record.Plan)

	require.NoError(t, svc.Resume(ctx, userID))
	assert.Equal(t, []string{"sub_1"}, provider.resumed)

	t.Run("no billing subscription", func(t *testing.T) {
		t.Parallel()

		freeUser := uuid.New()
		require.NoError(t, store.Save(ctx, &subscription.Record{UserID: freeUser, Plan: plans.PlanFree}))
		assert.ErrorIs(t, svc.Cancel(ctx, freeUser), subscription.ErrNoBillingSubscription)
		assert.ErrorIs(t, svc.Resume(ctx, freeUser), subscription.ErrNoBillingSubscription)
	})
}
