package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/usage"
)

var (
	ErrNoSubscription = errors.New("no subscription record for user")
	ErrUnknownFeature = errors.New("unknown feature is denied")
	ErrLimitExceeded  = errors.New("plan limit exceeded")
)

// SubscriptionSource yields the user's current subscription record with
// trial expiry already applied.
type SubscriptionSource interface {
	Current(ctx context.Context, userID uuid.UUID) (*subscription.Record, error)
}

// UsageSource yields the user's current-month usage record.
type UsageSource interface {
	Current(ctx context.Context, userID uuid.UUID) (usage.Record, error)
}

// UsageInfo pairs a counter with its effective limit for display.
type UsageInfo struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Gate decides whether a user may perform a metered action. It only reads;
// callers perform the gated write first and increment the usage counter
// after the write succeeds, so failed writes are never counted. That
// check-write-increment sequence is not transactional: two concurrent
// requests can both pass the check before either increments, overshooting
// a limit by a few actions. Limits here are soft quotas, not hard ones.
type Gate struct {
	subs     SubscriptionSource
	usage    UsageSource
	resolver *plans.Resolver
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the clock for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate creates an action gate. Panics on nil dependencies to fail fast
// during initialization.
func NewGate(subs SubscriptionSource, usageSrc UsageSource, resolver *plans.Resolver, opts ...GateOption) *Gate {
	if subs == nil {
		panic("entitlement: SubscriptionSource is required")
	}
	if usageSrc == nil {
		panic("entitlement: UsageSource is required")
	}
	if resolver == nil {
		resolver = plans.NewResolver(nil)
	}
	g := &Gate{
		subs:     subs,
		usage:    usageSrc,
		resolver: resolver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanPerform returns nil when the user may perform the action once more,
// or a sentinel error naming the reason for denial:
//
//   - no subscription record: ErrNoSubscription
//   - action outside the metered set: ErrUnknownFeature (denied, never
//     treated as unlimited)
//   - counter at or past the plan limit: ErrLimitExceeded
//
// An active trial or an active pro subscription allows unconditionally.
func (g *Gate) CanPerform(ctx context.Context, userID uuid.UUID, feature plans.Feature) error {
	record, err := g.subs.Current(ctx, userID)
	if errors.Is(err, subscription.ErrNotFound) {
		return ErrNoSubscription
	}
	if err != nil {
		return err
	}

	if !plans.Known(feature) {
		return ErrUnknownFeature
	}

	if record.IsTrialActiveAt(g.now()) {
		return nil
	}
	if record.IsProActive() {
		return nil
	}

	limits := g.resolver.LimitsFor(record.Plan)
	limit, ok := limits.Get(feature)
	if !ok {
		return ErrUnknownFeature
	}
	if limit == plans.Unlimited {
		return nil
	}

	current, err := g.usage.Current(ctx, userID)
	if err != nil {
		// A counter that cannot be read denies the action: one extra
		// refusal beats silently unlimited usage.
		return err
	}
	if current.Get(feature) >= limit {
		return ErrLimitExceeded
	}
	return nil
}

// Allowed is a boolean convenience over CanPerform for call sites that do
// not need the denial reason.
func (g *Gate) Allowed(ctx context.Context, userID uuid.UUID, feature plans.Feature) bool {
	return g.CanPerform(ctx, userID, feature) == nil
}

// Usage returns every metered feature with its counter and effective limit
// for the user's plan, for dashboards and upgrade prompts.
func (g *Gate) Usage(ctx context.Context, userID uuid.UUID) (map[plans.Feature]UsageInfo, error) {
	record, err := g.subs.Current(ctx, userID)
	if errors.Is(err, subscription.ErrNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}

	current, err := g.usage.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits := g.resolver.LimitsFor(record.Plan)
	unlimited := record.IsTrialActiveAt(g.now()) || record.IsProActive()

	result := make(map[plans.Feature]UsageInfo, len(plans.Features))
	for _, feature := range plans.Features {
		limit := plans.Unlimited
		if !unlimited {
			if v, ok := limits.Get(feature); ok {
				limit = v
			} else {
				limit = 0
			}
		}
		result[feature] = UsageInfo{Used: current.Get(feature), Limit: limit}
	}
	return result, nil
}
