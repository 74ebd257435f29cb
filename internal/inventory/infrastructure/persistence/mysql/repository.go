// Package mysql implements the inventory repositories on GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wqellis/brickvest/internal/inventory/domain"
	"github.com/wqellis/brickvest/pkg/contextx"
)

// ListingRepository is the GORM-backed listing store.
type ListingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a listing repository.
func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Save upserts the listing.
func (r *ListingRepository) Save(ctx context.Context, listing *domain.Listing) error {
	return r.getDB(ctx).WithContext(ctx).Save(listing).Error
}

// Get loads a listing by its external ID.
func (r *ListingRepository) Get(ctx context.Context, listingID string) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.getDB(ctx).WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// GetWithLock loads a listing with SELECT ... FOR UPDATE.
func (r *ListingRepository) GetWithLock(ctx context.Context, listingID string) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("listing_id = ?", listingID).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}
	return &listing, nil
}

// List returns listings filtered by status.
func (r *ListingRepository) List(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*domain.Listing, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Listing{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []*domain.Listing
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error; err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// DecrementAvailable performs the guarded decrement:
//
//	UPDATE listings SET available_shares = available_shares - ?
//	WHERE listing_id = ? AND status = 'ACTIVE' AND available_shares >= ?
//
// Zero rows affected is disambiguated with a follow-up read: a missing
// listing maps to ErrListingNotFound, an inactive one to
// ErrListingNotActive, and only a genuine shortfall to
// ErrInsufficientInventory.
func (r *ListingRepository) DecrementAvailable(ctx context.Context, listingID string, shares int64) error {
	res := r.getDB(ctx).WithContext(ctx).Model(&domain.Listing{}).
		Where("listing_id = ? AND status = ? AND available_shares >= ?", listingID, domain.ListingStatusActive, shares).
		UpdateColumn("available_shares", gorm.Expr("available_shares - ?", shares))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement available shares: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		listing, err := r.Get(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != domain.ListingStatusActive {
			return domain.ErrListingNotActive
		}
		return domain.ErrInsufficientInventory
	}
	return nil
}

// IncrementAvailable performs the bounded increment, refusing to push the
// pool above total_shares. A missing listing surfaces as
// ErrListingNotFound rather than a bound violation.
func (r *ListingRepository) IncrementAvailable(ctx context.Context, listingID string, shares int64) error {
	res := r.getDB(ctx).WithContext(ctx).Model(&domain.Listing{}).
		Where("listing_id = ? AND available_shares + ? <= total_shares", listingID, shares).
		UpdateColumn("available_shares", gorm.Expr("available_shares + ?", shares))
	if res.Error != nil {
		return fmt.Errorf("failed to increment available shares: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, listingID); err != nil {
			return err
		}
		return domain.ErrRestockExceedsTotal
	}
	return nil
}

func (r *ListingRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// ReservationRepository is the GORM-backed reservation store.
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a reservation repository.
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Save upserts the reservation.
func (r *ReservationRepository) Save(ctx context.Context, reservation *domain.Reservation) error {
	return r.getDB(ctx).WithContext(ctx).Save(reservation).Error
}

// Get loads a reservation by its external ID.
func (r *ReservationRepository) Get(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.getDB(ctx).WithContext(ctx).Where("reservation_id = ?", reservationID).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &reservation, nil
}

// GetWithLock loads a reservation with SELECT ... FOR UPDATE.
func (r *ReservationRepository) GetWithLock(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reservation_id = ?", reservationID).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	return &reservation, nil
}

// ListExpired returns held reservations past their TTL.
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	var reservations []*domain.Reservation
	err := r.getDB(ctx).WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.ReservationStatusHeld, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return reservations, nil
}

func (r *ReservationRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}
