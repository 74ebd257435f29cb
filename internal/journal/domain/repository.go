package domain

import "context"

// EntryRepository persists journal entries. There is deliberately no update
// or delete: the chain only grows.
type EntryRepository interface {
	Create(ctx context.Context, entries []*Entry) error
	// GetTail returns the highest-sequence entry, locking it inside the
	// caller's transaction so concurrent appends serialize. Returns
	// (nil, nil) on an empty chain.
	GetTail(ctx context.Context) (*Entry, error)
	// GetRange returns entries with fromSeq <= sequence <= toSeq in
	// ascending order.
	GetRange(ctx context.Context, fromSeq, toSeq uint64) ([]*Entry, error)
	// GetBefore returns the entry immediately preceding seq, or (nil, nil)
	// when seq opens the chain.
	GetBefore(ctx context.Context, seq uint64) (*Entry, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Entry, error)
	List(ctx context.Context, limit, offset int) ([]*Entry, int64, error)
}
