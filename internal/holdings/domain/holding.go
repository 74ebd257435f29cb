// Package domain holds per-user positions: share quantity and weighted
// average cost basis per (user, listing) pair.
package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is a user's position in one listing. Created lazily on the first
// completed buy and never deleted; quantity may reach zero and stay.
type Holding struct {
	gorm.Model
	UserID           string          `gorm:"column:user_id;type:varchar(32);not null;uniqueIndex:idx_user_listing" json:"user_id"`
	ListingID        string          `gorm:"column:listing_id;type:varchar(32);not null;uniqueIndex:idx_user_listing" json:"listing_id"`
	ShareQuantity    int64           `gorm:"column:share_quantity;not null;default:0" json:"share_quantity"`
	AverageCostBasis decimal.Decimal `gorm:"column:average_cost_basis;type:decimal(20,8);not null;default:0" json:"average_cost_basis"`
}

// TableName implements gorm schema.Tabler.
func (Holding) TableName() string { return "holdings" }

// NewHolding creates an empty position.
func NewHolding(userID, listingID string) *Holding {
	return &Holding{
		UserID:           userID,
		ListingID:        listingID,
		ShareQuantity:    0,
		AverageCostBasis: decimal.Zero,
	}
}

// ApplyBuy adds shares at price, moving the average cost basis to the
// quantity-weighted mean of the old position and the new lot.
func (h *Holding) ApplyBuy(shares int64, price decimal.Decimal) {
	if h.ShareQuantity == 0 {
		h.ShareQuantity = shares
		h.AverageCostBasis = price
		return
	}

	oldQty := decimal.NewFromInt(h.ShareQuantity)
	newQty := decimal.NewFromInt(shares)
	totalCost := oldQty.Mul(h.AverageCostBasis).Add(newQty.Mul(price))
	h.ShareQuantity += shares
	h.AverageCostBasis = totalCost.Div(oldQty.Add(newQty))
}

// ApplySell removes shares. The cost basis attaches to the remaining shares
// and only resets to zero when the position empties.
func (h *Holding) ApplySell(shares int64) error {
	if shares > h.ShareQuantity {
		return ErrInsufficientHoldings
	}
	h.ShareQuantity -= shares
	if h.ShareQuantity == 0 {
		h.AverageCostBasis = decimal.Zero
	}
	return nil
}

// ReverseBuy removes shares added by a now-cancelled buy. Same guard and
// decrement as a sell; fails when the shares were already resold.
func (h *Holding) ReverseBuy(shares int64) error {
	return h.ApplySell(shares)
}
