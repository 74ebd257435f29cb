// Package application wires the inventory domain to persistence and exposes
// the reserve/release/commit/restock operations.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wqellis/brickvest/internal/inventory/domain"
	"github.com/wqellis/brickvest/pkg/idgen"
	"github.com/wqellis/brickvest/pkg/logger"
	"github.com/wqellis/brickvest/pkg/metrics"
)

// TxRunner executes fn inside a database transaction carried on the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InventoryService implements the inventory ledger: per-listing share pools
// with atomic reservation, release, commit and restock.
//
// Reserve, Release, Commit and Restock join the transaction carried on ctx
// when one is present; the order state machine calls them inside its own
// transaction boundaries.
type InventoryService struct {
	listings     domain.ListingRepository
	reservations domain.ReservationRepository
	tx           TxRunner
	ttl          time.Duration
	metrics      *metrics.Metrics
}

// NewInventoryService creates the service. ttl bounds how long a reservation
// may stay held before the expiry sweep returns its shares to the pool.
func NewInventoryService(listings domain.ListingRepository, reservations domain.ReservationRepository, tx TxRunner, ttl time.Duration) *InventoryService {
	return &InventoryService{
		listings:     listings,
		reservations: reservations,
		tx:           tx,
		ttl:          ttl,
	}
}

// SetMetrics attaches the Prometheus collectors. Optional; nil-safe.
func (s *InventoryService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *InventoryService) gaugeHeld(delta float64) {
	if s.metrics != nil {
		s.metrics.ReservationsActive.Add(delta)
	}
}

// CreateListing registers a draft listing with its full pool available.
func (s *InventoryService) CreateListing(ctx context.Context, name string, totalShares int64, pricePerShare decimal.Decimal) (*domain.Listing, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("%w: total shares must be positive", domain.ErrValidation)
	}
	if pricePerShare.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: price per share must be positive", domain.ErrValidation)
	}

	listing := domain.NewListing(idgen.GenPrefixedID("LST"), name, totalShares, pricePerShare)
	if err := s.listings.Save(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}

	logger.Info(ctx, "listing created", "listing_id", listing.ListingID, "total_shares", totalShares)
	return listing, nil
}

// ActivateListing moves a draft listing to ACTIVE so it accepts orders.
func (s *InventoryService) ActivateListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.setStatus(ctx, listingID, domain.ListingStatusActive)
}

// CloseListing moves a listing to CLOSED; open reservations still resolve
// through their normal paths.
func (s *InventoryService) CloseListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.setStatus(ctx, listingID, domain.ListingStatusClosed)
}

func (s *InventoryService) setStatus(ctx context.Context, listingID string, status domain.ListingStatus) (*domain.Listing, error) {
	var listing *domain.Listing
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		listing, err = s.listings.GetWithLock(ctx, listingID)
		if err != nil {
			return err
		}
		listing.Status = status
		return s.listings.Save(ctx, listing)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "listing status changed", "listing_id", listingID, "status", status)
	return listing, nil
}

// GetListing loads a listing.
func (s *InventoryService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.listings.Get(ctx, listingID)
}

// ListListings returns listings filtered by status.
func (s *InventoryService) ListListings(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*domain.Listing, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.listings.List(ctx, status, limit, offset)
}

// GetReservation loads a reservation.
func (s *InventoryService) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	return s.reservations.Get(ctx, reservationID)
}

// Reserve places a TTL-bound hold of shares against the listing's pool.
// The decrement is a single guarded UPDATE, so contending callers serialize
// on the row and at most available_shares worth of holds ever succeed.
func (s *InventoryService) Reserve(ctx context.Context, listingID string, shares int64) (*domain.Reservation, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("%w: shares must be positive", domain.ErrValidation)
	}

	if err := s.listings.DecrementAvailable(ctx, listingID, shares); err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ReservationID: idgen.GenPrefixedID("RSV"),
		ListingID:     listingID,
		Shares:        shares,
		Status:        domain.ReservationStatusHeld,
		ExpiresAt:     time.Now().Add(s.ttl),
	}
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}
	s.gaugeHeld(1)

	logger.Debug(ctx, "shares reserved",
		"reservation_id", reservation.ReservationID,
		"listing_id", listingID,
		"shares", shares,
	)
	return reservation, nil
}

// Release returns a held reservation's shares to the pool. Used on payment
// failure, cancellation and TTL expiry.
func (s *InventoryService) Release(ctx context.Context, reservationID string) error {
	return s.resolve(ctx, reservationID, domain.ReservationStatusReleased)
}

// Commit marks a held reservation consumed. The pool was already
// decremented at reserve time, so no further inventory change happens.
func (s *InventoryService) Commit(ctx context.Context, reservationID string) error {
	reservation, err := s.reservations.GetWithLock(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status == domain.ReservationStatusExpired {
		return domain.ErrReservationExpired
	}
	if !reservation.IsHeld() {
		return domain.ErrReservationNotHeld
	}

	reservation.Status = domain.ReservationStatusConsumed
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return err
	}
	s.gaugeHeld(-1)
	return nil
}

// Restock adds shares back to the pool, bounded by total_shares. Used for
// sell-side orders and buy-order cancellations.
func (s *InventoryService) Restock(ctx context.Context, listingID string, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("%w: shares must be positive", domain.ErrValidation)
	}
	return s.listings.IncrementAvailable(ctx, listingID, shares)
}

// Reclaim takes shares out of the pool without a reservation. Used when a
// completed sell order is reversed and the shares move back to the seller.
func (s *InventoryService) Reclaim(ctx context.Context, listingID string, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("%w: shares must be positive", domain.ErrValidation)
	}
	if err := s.listings.DecrementAvailable(ctx, listingID, shares); err != nil {
		return err
	}
	return nil
}

func (s *InventoryService) resolve(ctx context.Context, reservationID string, status domain.ReservationStatus) error {
	reservation, err := s.reservations.GetWithLock(ctx, reservationID)
	if err != nil {
		return err
	}
	if !reservation.IsHeld() {
		return domain.ErrReservationNotHeld
	}

	if err := s.listings.IncrementAvailable(ctx, reservation.ListingID, reservation.Shares); err != nil {
		return err
	}

	reservation.Status = status
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return err
	}
	s.gaugeHeld(-1)
	return nil
}

// ReleaseExpired releases held reservations past their TTL and returns how
// many it released. The background sweep in cmd/engine drives it; a crash
// between reservation and commit eventually funnels through here.
func (s *InventoryService) ReleaseExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	expired, err := s.reservations.ListExpired(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, reservation := range expired {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.resolveExpired(ctx, reservation.ReservationID)
		})
		if err != nil {
			logger.Error(ctx, "failed to release expired reservation",
				"reservation_id", reservation.ReservationID, "error", err)
			continue
		}
		released++
		logger.Info(ctx, "expired reservation released",
			"reservation_id", reservation.ReservationID,
			"listing_id", reservation.ListingID,
			"shares", reservation.Shares,
		)
	}
	return released, nil
}

func (s *InventoryService) resolveExpired(ctx context.Context, reservationID string) error {
	reservation, err := s.reservations.GetWithLock(ctx, reservationID)
	if err != nil {
		return err
	}
	// A racing commit or cancel may have resolved it already.
	if !reservation.IsHeld() {
		return nil
	}

	if err := s.listings.IncrementAvailable(ctx, reservation.ListingID, reservation.Shares); err != nil {
		return err
	}
	reservation.Status = domain.ReservationStatusExpired
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return err
	}
	s.gaugeHeld(-1)
	return nil
}
