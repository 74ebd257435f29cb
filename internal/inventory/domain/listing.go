// Package domain holds the inventory bounded context: listings with a finite
// share pool and TTL-bound reservations against that pool.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusDraft  ListingStatus = "DRAFT"
	ListingStatusActive ListingStatus = "ACTIVE"
	ListingStatusClosed ListingStatus = "CLOSED"
)

// Listing is a finite-inventory asset sold in fractional shares.
// TotalShares is fixed at creation; AvailableShares only moves through
// reserve/release/restock and never leaves [0, TotalShares].
type Listing struct {
	gorm.Model
	ListingID       string          `gorm:"column:listing_id;type:varchar(32);uniqueIndex;not null" json:"listing_id"`
	Name            string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	TotalShares     int64           `gorm:"column:total_shares;not null" json:"total_shares"`
	AvailableShares int64           `gorm:"column:available_shares;not null;check:available_shares >= 0" json:"available_shares"`
	PricePerShare   decimal.Decimal `gorm:"column:price_per_share;type:decimal(20,8);not null" json:"price_per_share"`
	Status          ListingStatus   `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
}

// TableName implements gorm schema.Tabler.
func (Listing) TableName() string { return "listings" }

// NewListing creates a draft listing with the full pool available.
func NewListing(listingID, name string, totalShares int64, pricePerShare decimal.Decimal) *Listing {
	return &Listing{
		ListingID:       listingID,
		Name:            name,
		TotalShares:     totalShares,
		AvailableShares: totalShares,
		PricePerShare:   pricePerShare,
		Status:          ListingStatusDraft,
	}
}

// IsActive reports whether the listing accepts orders.
func (l *Listing) IsActive() bool { return l.Status == ListingStatusActive }

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	// ReservationStatusHeld means the shares are decremented from the pool
	// pending payment resolution.
	ReservationStatusHeld ReservationStatus = "HELD"
	// ReservationStatusConsumed means the order completed; the decrement is
	// permanent.
	ReservationStatusConsumed ReservationStatus = "CONSUMED"
	// ReservationStatusReleased means the shares returned to the pool.
	ReservationStatusReleased ReservationStatus = "RELEASED"
	// ReservationStatusExpired means the sweep released the hold past its TTL.
	ReservationStatusExpired ReservationStatus = "EXPIRED"
)

// Reservation is a temporary hold of shares against a listing's pool.
type Reservation struct {
	gorm.Model
	ReservationID string            `gorm:"column:reservation_id;type:varchar(32);uniqueIndex;not null" json:"reservation_id"`
	ListingID     string            `gorm:"column:listing_id;type:varchar(32);index;not null" json:"listing_id"`
	Shares        int64             `gorm:"column:shares;not null" json:"shares"`
	Status        ReservationStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	ExpiresAt     time.Time         `gorm:"column:expires_at;index;not null" json:"expires_at"`
}

// TableName implements gorm schema.Tabler.
func (Reservation) TableName() string { return "reservations" }

// IsHeld reports whether the reservation still holds shares.
func (r *Reservation) IsHeld() bool { return r.Status == ReservationStatusHeld }
