package domain

import (
	"context"
	"time"
)

// ListingRepository persists listings. DecrementAvailable and
// IncrementAvailable must be atomic conditional updates; callers rely on
// them to serialize contending reservations without read-then-write races.
type ListingRepository interface {
	Save(ctx context.Context, listing *Listing) error
	Get(ctx context.Context, listingID string) (*Listing, error)
	// GetWithLock loads the listing under a row lock inside the caller's
	// transaction.
	GetWithLock(ctx context.Context, listingID string) (*Listing, error)
	List(ctx context.Context, status ListingStatus, limit, offset int) ([]*Listing, int64, error)
	// DecrementAvailable subtracts shares from available_shares only when
	// enough remain, returning ErrInsufficientInventory otherwise.
	DecrementAvailable(ctx context.Context, listingID string, shares int64) error
	// IncrementAvailable adds shares back, bounded by total_shares,
	// returning ErrRestockExceedsTotal when the bound would break.
	IncrementAvailable(ctx context.Context, listingID string, shares int64) error
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) error
	Get(ctx context.Context, reservationID string) (*Reservation, error)
	// GetWithLock loads the reservation under a row lock inside the
	// caller's transaction.
	GetWithLock(ctx context.Context, reservationID string) (*Reservation, error)
	// ListExpired returns held reservations whose TTL elapsed before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
