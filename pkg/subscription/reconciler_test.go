package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
)

type recordingNotifier struct {
	emails  []string
	reasons []string
}

func (n *recordingNotifier) PaymentFailed(_ context.Context, email, reason string) error {
	n.emails = append(n.emails, email)
	n.reasons = append(n.reasons, reason)
	return nil
}

func seedSubscriber(t *testing.T, store *subscription.MemoryStore, customerID string) *subscription.Record {
	t.Helper()

	record := &subscription.Record{
		UserID:            uuid.New(),
		Email:             "user@example.com",
		Plan:              plans.PlanFree,
		Status:            subscription.StatusInactive,
		BillingCustomerID: customerID,
	}
	require.NoError(t, store.Save(context.Background(), record))
	return record
}

func TestReconciler_Handle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := subscription.WithReconcilerClock(func() time.Time { return now })

	t.Run("created activates pro", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		reconciler := subscription.NewReconciler(store, nil, clock)

		err := reconciler.Handle(ctx, subscription.SubscriptionCreated{
			EventMeta: subscription.EventMeta{ID: "evt_1", Type: "subscription.created", SubscriptionID: "sub_1", CustomerID: "cus_9"},
			Status:    "active",
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanPro, record.Plan)
		assert.Equal(t, subscription.StatusActive, record.Status)
		assert.Equal(t, "sub_1", record.BillingSubscriptionID)
		require.NotNil(t, record.SubscriptionStartsAt)
		assert.Equal(t, now, *record.SubscriptionStartsAt)
		assert.Nil(t, record.SubscriptionEndsAt)
	})

	t.Run("cancelled applied twice is idempotent", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		seeded.Plan = plans.PlanPro
		seeded.Status = subscription.StatusActive
		seeded.BillingSubscriptionID = "sub_1"
		require.NoError(t, store.Save(ctx, seeded))

		reconciler := subscription.NewReconciler(store, nil, clock)
		cancelled := subscription.SubscriptionCancelled{
			EventMeta: subscription.EventMeta{Type: "subscription.cancelled", CustomerID: "cus_9"},
		}

		require.NoError(t, reconciler.Handle(ctx, cancelled))
		first, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)

		require.NoError(t, reconciler.Handle(ctx, cancelled))
		second, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, plans.PlanFree, second.Plan)
		assert.Equal(t, subscription.StatusInactive, second.Status)
		assert.Empty(t, second.BillingSubscriptionID)
		require.NotNil(t, second.SubscriptionEndsAt)
		assert.Equal(t, now, *second.SubscriptionEndsAt)
	})

	t.Run("unknown billing customer is acknowledged and dropped", func(t *testing.T) {
		t.Parallel()

		reconciler := subscription.NewReconciler(subscription.NewMemoryStore(), nil, clock)
		err := reconciler.Handle(ctx, subscription.SubscriptionCreated{
			EventMeta: subscription.EventMeta{Type: "subscription.created", CustomerID: "cus_missing"},
		})
		require.NoError(t, err)
	})

	t.Run("payment failed keeps the plan and notifies", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		seeded.Plan = plans.PlanPro
		seeded.Status = subscription.StatusActive
		require.NoError(t, store.Save(ctx, seeded))

		notifier := &recordingNotifier{}
		reconciler := subscription.NewReconciler(store, nil, clock, subscription.WithNotifier(notifier))

		err := reconciler.Handle(ctx, subscription.PaymentFailed{
			EventMeta:     subscription.EventMeta{Type: "payment.failed", CustomerID: "cus_9"},
			FailureReason: "card_declined",
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanPro, record.Plan)
		assert.Equal(t, subscription.StatusPaymentFailed, record.Status)

		require.Len(t, notifier.emails, 1)
		assert.Equal(t, "user@example.com", notifier.emails[0])
		assert.Equal(t, []string{"card_declined"}, notifier.reasons)
	})

	t.Run("payment succeeded extends the paid window", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		seeded.Plan = plans.PlanPro
		seeded.Status = subscription.StatusPaymentFailed
		require.NoError(t, store.Save(ctx, seeded))

		reconciler := subscription.NewReconciler(store, nil, clock)
		nextBilling := now.AddDate(0, 1, 0)

		err := reconciler.Handle(ctx, subscription.PaymentSucceeded{
			EventMeta:       subscription.EventMeta{Type: "payment.succeeded", CustomerID: "cus_9"},
			Amount:          1900,
			Currency:        "USD",
			NextBillingDate: &nextBilling,
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, record.Status)
		require.NotNil(t, record.SubscriptionEndsAt)
		assert.Equal(t, nextBilling, *record.SubscriptionEndsAt)
	})

	t.Run("paused and resumed", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		seeded.Plan = plans.PlanPro
		seeded.Status = subscription.StatusActive
		require.NoError(t, store.Save(ctx, seeded))

		reconciler := subscription.NewReconciler(store, nil, clock)
		meta := subscription.EventMeta{CustomerID: "cus_9"}

		require.NoError(t, reconciler.Handle(ctx, subscription.SubscriptionPaused{EventMeta: meta}))
		record, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaused, record.Status)

		require.NoError(t, reconciler.Handle(ctx, subscription.SubscriptionResumed{EventMeta: meta}))
		record, err = store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, plans.PlanPro, record.Plan)
		assert.Equal(t, subscription.StatusActive, record.Status)
	})

	t.Run("updated maps provider statuses, ignores unknown", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		seeded := seedSubscriber(t, store, "cus_9")
		seeded.Plan = plans.PlanPro
		seeded.Status = subscription.StatusActive
		require.NoError(t, store.Save(ctx, seeded))

		reconciler := subscription.NewReconciler(store, nil, clock)
		meta := subscription.EventMeta{CustomerID: "cus_9"}

		require.NoError(t, reconciler.Handle(ctx, subscription.SubscriptionUpdated{EventMeta: meta, Status: "past_due"}))
		record, err := store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaymentFailed, record.Status)

		require.NoError(t, reconciler.Handle(ctx, subscription.SubscriptionUpdated{EventMeta: meta, Status: "something_new"}))
		record, err = store.Get(ctx, seeded.UserID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaymentFailed, record.Status)
	})
}

func TestReconciler_Dedupe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := subscription.NewMemoryStore()
	seeded := seedSubscriber(t, store, "cus_9")

	reconciler := subscription.NewReconciler(store, nil,
		subscription.WithDeduper(subscription.NewRedisDeduper(client, time.Hour)))

	created := subscription.SubscriptionCreated{
		EventMeta: subscription.EventMeta{ID: "evt_1", Type: "subscription.created", SubscriptionID: "sub_1", CustomerID: "cus_9"},
	}
	require.NoError(t, reconciler.Handle(ctx, created))

	// Manually unwind the record, then replay: the dedupe marker must keep
	// the duplicate from being applied.
	record, err := store.Get(ctx, seeded.UserID)
	require.NoError(t, err)
	record.Plan = plans.PlanFree
	record.Status = subscription.StatusInactive
	require.NoError(t, store.Save(ctx, record))

	require.NoError(t, reconciler.Handle(ctx, created))

	record, err = store.Get(ctx, seeded.UserID)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, record.Plan)

	// A different event ID goes through.
	require.NoError(t, reconciler.Handle(ctx, subscription.SubscriptionCreated{
		EventMeta: subscription.EventMeta{ID: "evt_2", Type: "subscription.created", SubscriptionID: "sub_1", CustomerID: "cus_9"},
	}))
	record, err = store.Get(ctx, seeded.UserID)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPro, record.Plan)
}

func TestRedisDeduper_AlreadySeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deduper := subscription.NewRedisDeduper(client, time.Hour)

	seen, err := deduper.AlreadySeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = deduper.AlreadySeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Marker expires with the TTL.
	mr.FastForward(2 * time.Hour)
	seen, err = deduper.AlreadySeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
