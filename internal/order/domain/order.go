// Package domain holds the order aggregate and its state machine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// transitions is the explicit edge table of the state machine. Anything not
// listed is rejected with ErrInvalidStateTransition and changes nothing.
//
// COMPLETED -> CANCELLED is the post-hoc reversal path.
// FAILED -> PENDING is the explicit retry path; the retry must reuse the
// order's idempotency key against the payment gateway.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {StatusCancelled},
	StatusFailed:    {StatusPending},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a permitted edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is a single buy or sell request moving through the state machine.
// Orders are never deleted; terminal states stay on record.
type Order struct {
	gorm.Model
	OrderID   string `gorm:"column:order_id;type:varchar(32);uniqueIndex;not null" json:"order_id"`
	UserID    string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	ListingID string `gorm:"column:listing_id;type:varchar(32);index;not null" json:"listing_id"`
	Side      Side   `gorm:"column:side;type:varchar(10);not null" json:"side"`
	Shares    int64  `gorm:"column:shares;not null" json:"shares"`
	// PricePerShare is the listing price at submission time.
	PricePerShare decimal.Decimal `gorm:"column:price_per_share;type:decimal(20,8);not null" json:"price_per_share"`
	// Amount = Shares * PricePerShare, fixed at submission.
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	Status Status          `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// IdempotencyKey is set once at creation and never changes. Every
	// payment attempt for this order, including retries, carries it.
	IdempotencyKey string `gorm:"column:idempotency_key;type:varchar(64);uniqueIndex;not null" json:"idempotency_key"`
	// ReservationID links the inventory hold backing a buy order.
	ReservationID string `gorm:"column:reservation_id;type:varchar(32)" json:"reservation_id,omitempty"`
	// PaymentRef is the gateway's reference for a successful charge.
	PaymentRef    string     `gorm:"column:payment_ref;type:varchar(64)" json:"payment_ref,omitempty"`
	FailureReason string     `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
}

// TableName implements gorm schema.Tabler.
func (Order) TableName() string { return "orders" }

// NewOrder creates a PENDING order with its amount derived from the listing
// price at submission time.
func NewOrder(orderID, userID, listingID string, side Side, shares int64, pricePerShare decimal.Decimal, idempotencyKey string) *Order {
	return &Order{
		OrderID:        orderID,
		UserID:         userID,
		ListingID:      listingID,
		Side:           side,
		Shares:         shares,
		PricePerShare:  pricePerShare,
		Amount:         pricePerShare.Mul(decimal.NewFromInt(shares)),
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
	}
}

// Transition moves the order to the target status, rejecting edges outside
// the table and leaving the order untouched on rejection.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidStateTransition
	}
	o.Status = to

	now := time.Now()
	switch to {
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	case StatusPending:
		// Retry path: clear the previous attempt's failure.
		o.FailureReason = ""
	}
	return nil
}

// IsTerminal reports whether no further transitions exist.
func (o *Order) IsTerminal() bool {
	return len(transitions[o.Status]) == 0
}
