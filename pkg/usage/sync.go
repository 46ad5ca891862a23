package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

var ErrFailedToCountFeature = errors.New("failed to count live feature documents")

// CounterFunc returns the authoritative count of live documents for one
// feature (e.g. the user's non-deleted tasks). Must be cheap; it runs once
// per feature on every sync.
type CounterFunc func(ctx context.Context, userID uuid.UUID) (int64, error)

// Syncer recomputes a user's current-month counters from the authoritative
// source-of-truth collections and overwrites the counter document. It is the
// reconciliation escape hatch for drift: the gate's check-write-increment
// sequence is not transactional, so counters can under-report after partial
// failures.
type Syncer struct {
	store    Store
	counters map[plans.Feature]CounterFunc
}

// NewSyncer builds a syncer over the given store and per-feature counters.
// Every metered feature must have a counter registered; a feature without
// one would silently sync to zero and wipe real usage.
func NewSyncer(store Store, counters map[plans.Feature]CounterFunc) (*Syncer, error) {
	for _, feature := range plans.Features {
		if counters[feature] == nil {
			return nil, fmt.Errorf("usage: no counter registered for feature %s", feature)
		}
	}
	return &Syncer{store: store, counters: counters}, nil
}

// Sync counts the user's live documents per feature and replaces the
// current-month record with the result.
func (s *Syncer) Sync(ctx context.Context, userID uuid.UUID) (Record, error) {
	counts := make(map[plans.Feature]int64, len(s.counters))
	for feature, counter := range s.counters {
		n, err := counter(ctx, userID)
		if err != nil {
			return Record{}, errors.Join(ErrFailedToCountFeature,
				fmt.Errorf("feature %s: %w", feature, err))
		}
		counts[feature] = n
	}
	return s.store.Replace(ctx, userID, CurrentMonthKey(), counts)
}

// CollectionCounters returns counters backed by the app's source-of-truth
// collections, one collection per feature, named after the feature.
func CollectionCounters(db *mongo.Database) map[plans.Feature]CounterFunc {
	counters := make(map[plans.Feature]CounterFunc, len(plans.Features))
	for _, feature := range plans.Features {
		coll := db.Collection(string(feature))
		counters[feature] = func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return coll.CountDocuments(ctx, bson.M{"user_id": userID})
		}
	}
	return counters
}
