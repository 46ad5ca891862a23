package subscription

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
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (s *MemoryStore) GetByCustomerID(_ context.Context, customerID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID != "" {
		for _, record := range s.records {
			if record.BillingCustomerID == customerID {
				copied := record
				return &copied, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.UserID] = *record
	return nil
}

func (s *MemoryStore) ExpiredTrials(_ context.Context, now time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*Record
	for _, record := range s.records {
		if record.Plan == plans.PlanTrial && !record.TrialEndsAt.After(now) {
			copied := record
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

func (s *MemoryStore) TrialsEndingBy(_ context.Context, cutoff time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ending []*Record
	for _, record := range s.records {
		if record.Plan == plans.PlanTrial && record.TrialNoticeSentAt == nil && !record.TrialEndsAt.After(cutoff) {
			copied := record
			ending = append(ending, &copied)
		}
	}
	return ending, nil
}
