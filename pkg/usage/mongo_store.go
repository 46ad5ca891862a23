package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "usage_records"

// MongoStore implements Store on a MongoDB collection. One document per
// (user, month), keyed by "<userID>-<YYYY-MM>". Increments go through $inc
// with upsert so concurrent requests never lose updates.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore creates a usage store over the given database.
func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{
		coll: db.Collection(collection),
		now:  time.Now,
	}
}

func (s *MongoStore) Current(ctx context.Context, userID uuid.UUID) (Record, error) {
	monthKey := MonthKey(s.now())

	var record Record
	err := s.coll.FindOne(ctx, bson.M{"_id": RecordID(userID, monthKey)}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Lazily created on first increment; an absent document reads as zero.
		return Record{UserID: userID, MonthKey: monthKey}, nil
	}
	if err != nil {
		return Record{}, errors.Join(ErrFailedToLoadUsage, err)
	}
	return record, nil
}

func (s *MongoStore) Increment(ctx context.Context, userID uuid.UUID, feature plans.Feature) error {
	if !plans.Known(feature) {
		return ErrUnknownFeature
	}

	now := s.now().UTC()
	monthKey := MonthKey(s.now())

	// Single atomic $inc with upsert. Never read-then-write: that would
	// drop increments from concurrent requests by the same user.
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": RecordID(userID, monthKey)},
		bson.M{
			"$inc": bson.M{string(feature): 1},
			"$set": bson.M{"updated_at": now},
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"month_key":  monthKey,
				"created_at": now,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrFailedToIncrement, err)
	}
	return nil
}

func (s *MongoStore) Reset(ctx context.Context, userID uuid.UUID, monthKey string) (Record, error) {
	return s.Replace(ctx, userID, monthKey, map[plans.Feature]int64{})
}

func (s *MongoStore) Replace(ctx context.Context, userID uuid.UUID, monthKey string, counts map[plans.Feature]int64) (Record, error) {
	now := s.now().UTC()

	set := bson.M{"updated_at": now}
	for _, feature := range plans.Features {
		set[string(feature)] = counts[feature]
	}
	for feature := range counts {
		if !plans.Known(feature) {
			return Record{}, ErrUnknownFeature
		}
	}

	var record Record
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": RecordID(userID, monthKey)},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"month_key":  monthKey,
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&record)
	if err != nil {
		return Record{}, errors.Join(ErrFailedToSaveUsage, err)
	}
	return record, nil
}
