package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wqellis/brickvest/internal/inventory/domain"
)

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*domain.Listing)}
}

func (r *fakeListingRepo) Save(_ context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ListingID] = listing
	return nil
}

func (r *fakeListingRepo) Get(_ context.Context, listingID string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return listing, nil
}

func (r *fakeListingRepo) GetWithLock(ctx context.Context, listingID string) (*domain.Listing, error) {
	return r.Get(ctx, listingID)
}

func (r *fakeListingRepo) List(_ context.Context, status domain.ListingStatus, limit, offset int) ([]*domain.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, l := range r.listings {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeListingRepo) DecrementAvailable(_ context.Context, listingID string, shares int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok {
		return domain.ErrListingNotFound
	}
	if listing.Status != domain.ListingStatusActive {
		return domain.ErrListingNotActive
	}
	if listing.AvailableShares < shares {
		return domain.ErrInsufficientInventory
	}
	listing.AvailableShares -= shares
	return nil
}

func (r *fakeListingRepo) IncrementAvailable(_ context.Context, listingID string, shares int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok {
		return domain.ErrListingNotFound
	}
	if listing.AvailableShares+shares > listing.TotalShares {
		return domain.ErrRestockExceedsTotal
	}
	listing.AvailableShares += shares
	return nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*domain.Reservation)}
}

func (r *fakeReservationRepo) Save(_ context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[reservation.ReservationID] = reservation
	return nil
}

func (r *fakeReservationRepo) Get(_ context.Context, reservationID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return reservation, nil
}

func (r *fakeReservationRepo) GetWithLock(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	return r.Get(ctx, reservationID)
}

func (r *fakeReservationRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Reservation
	for _, res := range r.reservations {
		if res.IsHeld() && res.ExpiresAt.Before(now) && len(out) < limit {
			out = append(out, res)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*InventoryService, *fakeListingRepo, *fakeReservationRepo) {
	t.Helper()
	listings := newFakeListingRepo()
	reservations := newFakeReservationRepo()
	svc := NewInventoryService(listings, reservations, fakeTx{}, 15*time.Minute)
	return svc, listings, reservations
}

func newActiveListing(t *testing.T, svc *InventoryService, shares int64) *domain.Listing {
	t.Helper()
	ctx := context.Background()
	listing, err := svc.CreateListing(ctx, "Test Asset", shares, decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	listing, err = svc.ActivateListing(ctx, listing.ListingID)
	require.NoError(t, err)
	return listing
}

func TestCreateListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	t.Run("draft with full pool", func(t *testing.T) {
		listing, err := svc.CreateListing(ctx, "Asset", 1000, decimal.RequireFromString("2.00"))
		require.NoError(t, err)
		assert.Equal(t, domain.ListingStatusDraft, listing.Status)
		assert.Equal(t, int64(1000), listing.AvailableShares)
	})

	t.Run("rejects non-positive shares", func(t *testing.T) {
		_, err := svc.CreateListing(ctx, "Asset", 0, decimal.RequireFromString("2.00"))
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		_, err := svc.CreateListing(ctx, "Asset", 10, decimal.Zero)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestReserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("decrements pool and holds", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)

		reservation, err := svc.Reserve(ctx, listing.ListingID, 500)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationStatusHeld, reservation.Status)

		got, err := svc.GetListing(ctx, listing.ListingID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.AvailableShares)
	})

	t.Run("insufficient inventory reserves nothing", func(t *testing.T) {
		t.Parallel()
		svc, _, reservations := newTestService(t)
		listing := newActiveListing(t, svc, 100)

		_, err := svc.Reserve(ctx, listing.ListingID, 101)
		require.ErrorIs(t, err, domain.ErrInsufficientInventory)

		got, err := svc.GetListing(ctx, listing.ListingID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.AvailableShares)
		assert.Empty(t, reservations.reservations)
	})
}

func TestReleaseAndCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("release returns shares", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		reservation, err := svc.Reserve(ctx, listing.ListingID, 500)
		require.NoError(t, err)

		require.NoError(t, svc.Release(ctx, reservation.ReservationID))

		got, err := svc.GetListing(ctx, listing.ListingID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.AvailableShares)
	})

	t.Run("commit keeps the decrement", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		reservation, err := svc.Reserve(ctx, listing.ListingID, 500)
		require.NoError(t, err)

		require.NoError(t, svc.Commit(ctx, reservation.ReservationID))

		got, err := svc.GetListing(ctx, listing.ListingID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.AvailableShares)
	})

	t.Run("commit after expiry sweep fails", func(t *testing.T) {
		t.Parallel()
		svc, _, reservations := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		reservation, err := svc.Reserve(ctx, listing.ListingID, 500)
		require.NoError(t, err)

		reservations.reservations[reservation.ReservationID].Status = domain.ReservationStatusExpired
		require.ErrorIs(t, svc.Commit(ctx, reservation.ReservationID), domain.ErrReservationExpired)
	})

	t.Run("double release fails", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		reservation, err := svc.Reserve(ctx, listing.ListingID, 500)
		require.NoError(t, err)

		require.NoError(t, svc.Release(ctx, reservation.ReservationID))
		require.ErrorIs(t, svc.Release(ctx, reservation.ReservationID), domain.ErrReservationNotHeld)
	})
}

func TestRestock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("bounded by total shares", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)

		err := svc.Restock(ctx, listing.ListingID, 1)
		require.ErrorIs(t, err, domain.ErrRestockExceedsTotal)
	})

	t.Run("returns sold shares", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		require.NoError(t, svc.Reclaim(ctx, listing.ListingID, 300))

		require.NoError(t, svc.Restock(ctx, listing.ListingID, 300))
		got, err := svc.GetListing(ctx, listing.ListingID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.AvailableShares)
	})

	t.Run("unknown listing is not a bound violation", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)

		err := svc.Restock(ctx, "LST-missing", 10)
		require.ErrorIs(t, err, domain.ErrListingNotFound)
		err = svc.Reclaim(ctx, "LST-missing", 10)
		require.ErrorIs(t, err, domain.ErrListingNotFound)
	})

	t.Run("closed listing is not an inventory shortfall", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t)
		listing := newActiveListing(t, svc, 1000)
		_, err := svc.CloseListing(ctx, listing.ListingID)
		require.NoError(t, err)

		err = svc.Reclaim(ctx, listing.ListingID, 10)
		require.ErrorIs(t, err, domain.ErrListingNotActive)
	})
}

func TestReleaseExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, reservations := newTestService(t)
	listing := newActiveListing(t, svc, 1000)

	stale, err := svc.Reserve(ctx, listing.ListingID, 200)
	require.NoError(t, err)
	fresh, err := svc.Reserve(ctx, listing.ListingID, 100)
	require.NoError(t, err)

	// Age one reservation past its TTL.
	reservations.reservations[stale.ReservationID].ExpiresAt = time.Now().Add(-time.Minute)

	released, err := svc.ReleaseExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := svc.GetListing(ctx, listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.AvailableShares)

	swept, err := svc.GetReservation(ctx, stale.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusExpired, swept.Status)

	kept, err := svc.GetReservation(ctx, fresh.ReservationID)
	require.NoError(t, err)
	assert.True(t, kept.IsHeld())
}
