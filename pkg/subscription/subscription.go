package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

// Status represents the current state of a subscription record.
type Status string

const (
	StatusActive        Status = "active"
	StatusInactive      Status = "inactive"
	StatusPaused        Status = "paused"
	StatusPaymentFailed Status = "payment_failed"
)

// Record holds a user's subscription state. Each user has exactly one
// record, created at signup with a trial window.
//
// Either the trial window or SubscriptionStartsAt drives effective
// entitlement, never both: a pro activation supersedes the trial window,
// and trial expiry downgrades the plan to free.
// BillingSubscriptionID is set only while the plan is pro.
type Record struct {
	UserID                uuid.UUID  `bson:"_id" json:"user_id"`
	Email                 string     `bson:"email" json:"email"`
	Plan                  plans.Name `bson:"plan" json:"plan"`
	Status                Status     `bson:"status" json:"status"`
	TrialStartsAt         time.Time  `bson:"trial_starts_at" json:"trial_starts_at"`
	TrialEndsAt           time.Time  `bson:"trial_ends_at" json:"trial_ends_at"`
	SubscriptionStartsAt  *time.Time `bson:"subscription_starts_at,omitempty" json:"subscription_starts_at,omitempty"`
	SubscriptionEndsAt    *time.Time `bson:"subscription_ends_at,omitempty" json:"subscription_ends_at,omitempty"`
	BillingCustomerID     string     `bson:"billing_customer_id,omitempty" json:"billing_customer_id,omitempty"`
	BillingSubscriptionID string     `bson:"billing_subscription_id,omitempty" json:"billing_subscription_id,omitempty"`
	TrialNoticeSentAt     *time.Time `bson:"trial_notice_sent_at,omitempty" json:"-"`
	CreatedAt             time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsTrialActiveAt reports whether the record is on trial with an open window.
func (r *Record) IsTrialActiveAt(now time.Time) bool {
	return r.Plan == plans.PlanTrial && now.Before(r.TrialEndsAt)
}

// IsProActive reports whether the record is on a paid plan in good standing.
func (r *Record) IsProActive() bool {
	return r.Plan == plans.PlanPro && r.Status == StatusActive
}

// TrialDaysRemainingAt returns whole days left in the trial window at a
// given time, rounding partial days up. Zero once expired or off trial.
func (r *Record) TrialDaysRemainingAt(now time.Time) int {
	if r.Plan != plans.PlanTrial {
		return 0
	}
	remaining := r.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := remaining.Hours() / 24
	return int(days + 0.5)
}
