package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
)

// MemoryStore is an in-memory Store for tests and local development.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock, letting tests pin the month bucket.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Current(_ context.Context, userID uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	monthKey := MonthKey(s.now())
	if record, ok := s.records[RecordID(userID, monthKey)]; ok {
		return record, nil
	}
	return Record{UserID: userID, MonthKey: monthKey}, nil
}

func (s *MemoryStore) Increment(_ context.Context, userID uuid.UUID, feature plans.Feature) error {
	if !plans.Known(feature) {
		return ErrUnknownFeature
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	monthKey := MonthKey(now)
	id := RecordID(userID, monthKey)

	record, ok := s.records[id]
	if !ok {
		record = Record{UserID: userID, MonthKey: monthKey, CreatedAt: now.UTC()}
	}

	switch feature {
	case plans.FeatureTasks:
		record.Tasks++
	case plans.FeatureNotes:
		record.Notes++
	case plans.FeatureHabits:
		record.Habits++
	case plans.FeatureEvents:
		record.Events++
	case plans.FeatureSheets:
		record.Sheets++
	}
	record.UpdatedAt = now.UTC()

	s.records[id] = record
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID uuid.UUID, monthKey string) (Record, error) {
	return s.Replace(ctx, userID, monthKey, map[plans.Feature]int64{})
}

func (s *MemoryStore) Replace(_ context.Context, userID uuid.UUID, monthKey string, counts map[plans.Feature]int64) (Record, error) {
	for feature := range counts {
		if !plans.Known(feature) {
			return Record{}, ErrUnknownFeature
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := RecordID(userID, monthKey)

	record, ok := s.records[id]
	if !ok {
		record = Record{UserID: userID, MonthKey: monthKey, CreatedAt: now}
	}

	record.Tasks = counts[plans.FeatureTasks]
	record.Notes = counts[plans.FeatureNotes]
	record.Habits = counts[plans.FeatureHabits]
	record.Events = counts[plans.FeatureEvents]
	record.Sheets = counts[plans.FeatureSheets]
	record.UpdatedAt = now

	s.records[id] = record
	return record, nil
}
