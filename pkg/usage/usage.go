package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

var (
	ErrUnknownFeature    = errors.New("unknown metered feature")
	ErrFailedToIncrement = errors.New("failed to increment usage counter")
	ErrFailedToLoadUsage = errors.New("failed to load usage record")
	ErrFailedToSaveUsage = errors.New("failed to save usage record")
)

// Record holds one user's per-feature consumption for a single calendar
// month. Counters only grow within a month (administrative reset aside) and
// start from zero each new month with no carry-over.
type Record struct {
	UserID    uuid.UUID `bson:"user_id" json:"user_id"`
	MonthKey  string    `bson:"month_key" json:"month_key"`
	Tasks     int64     `bson:"tasks" json:"tasks"`
	Notes     int64     `bson:"notes" json:"notes"`
	Habits    int64     `bson:"habits" json:"habits"`
	Events    int64     `bson:"events" json:"events"`
	Sheets    int64     `bson:"sheets" json:"sheets"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Get returns the counter value for a feature.
func (r Record) Get(f plans.Feature) int64 {
	switch f {
	case plans.FeatureTasks:
		return r.Tasks
	case plans.FeatureNotes:
		return r.Notes
	case plans.FeatureHabits:
		return r.Habits
	case plans.FeatureEvents:
		return r.Events
	case plans.FeatureSheets:
		return r.Sheets
	}
	return 0
}

// Counts returns the record's counters keyed by feature.
func (r Record) Counts() map[plans.Feature]int64 {
	return map[plans.Feature]int64{
		plans.FeatureTasks:  r.Tasks,
		plans.FeatureNotes:  r.Notes,
		plans.FeatureHabits: r.Habits,
		plans.FeatureEvents: r.Events,
		plans.FeatureSheets: r.Sheets,
	}
}

// MonthKey formats t as the YYYY-MM bucket key. Buckets follow the server's
// local calendar month, matching how the counters were accumulated.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// CurrentMonthKey returns the bucket key for the current month.
func CurrentMonthKey() string {
	return MonthKey(time.Now())
}

// RecordID builds the document key for a user and month.
func RecordID(userID uuid.UUID, monthKey string) string {
	return userID.String() + "-" + monthKey
}

// Store persists monthly usage records.
//
// Increment must be a single atomic operation on the backing store, never a
// read-modify-write pair: two concurrent requests from the same user (e.g.
// two browser tabs) must not lose an update. An increment failure is
// retryable; callers must not treat the gated action as committed until the
// increment has succeeded.
type Store interface {
	// Current returns the record for the current month. A missing record
	// comes back zero-valued and is not persisted until the first increment.
	Current(ctx context.Context, userID uuid.UUID) (Record, error)

	// Increment adds one to a feature counter for the current month,
	// creating the record on first use.
	Increment(ctx context.Context, userID uuid.UUID, feature plans.Feature) error

	// Reset zeroes all counters for the given month. Administrative
	// operation only; not part of the normal flow.
	Reset(ctx context.Context, userID uuid.UUID, monthKey string) (Record, error)

	// Replace overwrites the counters for the given month with the supplied
	// values. Used by reconciliation to correct drift.
	Replace(ctx context.Context, userID uuid.UUID, monthKey string, counts map[plans.Feature]int64) (Record, error)
}
