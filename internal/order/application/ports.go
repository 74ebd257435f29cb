package application

import (
	"context"

	"github.com/shopspring/decimal"

	holdingsdomain "github.com/wqellis/brickvest/internal/holdings/domain"
	inventorydomain "github.com/wqellis/brickvest/internal/inventory/domain"
	journalapp "github.com/wqellis/brickvest/internal/journal/application"
	journaldomain "github.com/wqellis/brickvest/internal/journal/domain"
)

// The order state machine consumes the other contexts through these
// narrow ports; the concrete application services satisfy them.

// InventoryLedger is what the state machine needs from inventory.
type InventoryLedger interface {
	GetListing(ctx context.Context, listingID string) (*inventorydomain.Listing, error)
	Reserve(ctx context.Context, listingID string, shares int64) (*inventorydomain.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error
	Restock(ctx context.Context, listingID string, shares int64) error
	Reclaim(ctx context.Context, listingID string, shares int64) error
}

// TransactionJournal is what the state machine needs from the journal.
type TransactionJournal interface {
	Append(ctx context.Context, entries []journalapp.NewEntry) ([]*journaldomain.Entry, error)
}

// HoldingsAggregator is what the state machine needs from holdings.
type HoldingsAggregator interface {
	GetHolding(ctx context.Context, userID, listingID string) (*holdingsdomain.Holding, error)
	ApplyBuy(ctx context.Context, userID, listingID string, shares int64, price decimal.Decimal) error
	ApplySell(ctx context.Context, userID, listingID string, shares int64) error
	ReverseBuy(ctx context.Context, userID, listingID string, shares int64) error
}

// TxRunner executes fn inside a database transaction carried on the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
