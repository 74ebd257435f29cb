package domain

import "context"

// HoldingRepository persists positions. The store enforces one holding per
// (user, listing) pair with a unique constraint.
type HoldingRepository interface {
	Save(ctx context.Context, holding *Holding) error
	Get(ctx context.Context, userID, listingID string) (*Holding, error)
	// GetWithLock loads the position under a row lock inside the caller's
	// transaction; mutations go through it.
	GetWithLock(ctx context.Context, userID, listingID string) (*Holding, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Holding, int64, error)
	// SumByListing totals the held share quantity across all users of a
	// listing; used by reconciliation checks.
	SumByListing(ctx context.Context, listingID string) (int64, error)
}
