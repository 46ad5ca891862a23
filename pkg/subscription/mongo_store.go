package subscription

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
const DefaultCollection = "subscriptions"

// MongoStore implements Store on a MongoDB collection, one document per
// user keyed by the user ID.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a subscription store over the given database.
func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{coll: db.Collection(collection)}
}

func (s *MongoStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var record Record
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	return &record, nil
}

func (s *MongoStore) GetByCustomerID(ctx context.Context, customerID string) (*Record, error) {
	var record Record
	err := s.coll.FindOne(ctx, bson.M{"billing_customer_id": customerID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	return &record, nil
}

func (s *MongoStore) Save(ctx context.Context, record *Record) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": record.UserID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrFailedToSaveSubscription, err)
	}
	return nil
}

func (s *MongoStore) ExpiredTrials(ctx context.Context, now time.Time) ([]*Record, error) {
	return s.findTrials(ctx, bson.M{
		"plan":          plans.PlanTrial,
		"trial_ends_at": bson.M{"$lte": now},
	})
}

func (s *MongoStore) TrialsEndingBy(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	return s.findTrials(ctx, bson.M{
		"plan":                 plans.PlanTrial,
		"trial_ends_at":        bson.M{"$lte": cutoff},
		"trial_notice_sent_at": bson.M{"$exists": false},
	})
}

func (s *MongoStore) findTrials(ctx context.Context, filter bson.M) ([]*Record, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	return records, nil
}
