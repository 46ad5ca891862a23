package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription records. Each user has exactly one record,
// so UserID serves as the primary key.
type Store interface {
	// Get retrieves a record by user ID.
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// GetByCustomerID retrieves the record whose billing customer ID
	// matches. Used by the webhook reconciler to resolve the target user.
	// Returns ErrNotFound when no record matches.
	GetByCustomerID(ctx context.Context, customerID string) (*Record, error)

	// Save creates or updates a record, keyed by UserID.
	Save(ctx context.Context, record *Record) error

	// ExpiredTrials lists records still on the trial plan whose window
	// closed before now. Used by the periodic downgrade sweep.
	ExpiredTrials(ctx context.Context, now time.Time) ([]*Record, error)

	// TrialsEndingBy lists trial records whose window closes at or before
	// cutoff and that have not been sent an ending notice yet.
	TrialsEndingBy(ctx context.Context, cutoff time.Time) ([]*Record, error)
}
