package domain

import "context"

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	// GetWithLock loads the order under a row lock inside the caller's
	// transaction. Cancellation and status updates on the same order
	// serialize on it.
	GetWithLock(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, status Status, limit, offset int) ([]*Order, int64, error)
	ListByListing(ctx context.Context, listingID string, status Status, limit, offset int) ([]*Order, int64, error)
}
