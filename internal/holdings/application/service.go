// Package application exposes holdings mutations and queries.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wqellis/brickvest/internal/holdings/domain"
	"github.com/wqellis/brickvest/pkg/logger"
)

// HoldingsService maintains per (user, listing) positions. Mutations join
// the transaction carried on ctx; the order state machine calls them inside
// the same transaction as the triggering order transition.
type HoldingsService struct {
	holdings domain.HoldingRepository
}

// NewHoldingsService creates the service.
func NewHoldingsService(holdings domain.HoldingRepository) *HoldingsService {
	return &HoldingsService{holdings: holdings}
}

// ApplyBuy adds shares bought at price, creating the position lazily on the
// first completed buy.
func (s *HoldingsService) ApplyBuy(ctx context.Context, userID, listingID string, shares int64, price decimal.Decimal) error {
	holding, err := s.holdings.GetWithLock(ctx, userID, listingID)
	if err != nil {
		if !errors.Is(err, domain.ErrHoldingNotFound) {
			return err
		}
		holding = domain.NewHolding(userID, listingID)
	}

	holding.ApplyBuy(shares, price)
	if err := s.holdings.Save(ctx, holding); err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}

	logger.Debug(ctx, "holding buy applied",
		"user_id", userID,
		"listing_id", listingID,
		"shares", shares,
		"quantity", holding.ShareQuantity,
	)
	return nil
}

// ApplySell removes sold shares; the average cost basis stays with the
// remaining position.
func (s *HoldingsService) ApplySell(ctx context.Context, userID, listingID string, shares int64) error {
	return s.decrement(ctx, userID, listingID, shares, func(h *domain.Holding) error {
		return h.ApplySell(shares)
	})
}

// ReverseBuy compensates a cancelled buy. Fails with
// ErrInsufficientHoldings when the shares were already resold.
func (s *HoldingsService) ReverseBuy(ctx context.Context, userID, listingID string, shares int64) error {
	return s.decrement(ctx, userID, listingID, shares, func(h *domain.Holding) error {
		return h.ReverseBuy(shares)
	})
}

func (s *HoldingsService) decrement(ctx context.Context, userID, listingID string, shares int64, apply func(*domain.Holding) error) error {
	holding, err := s.holdings.GetWithLock(ctx, userID, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldingNotFound) {
			return domain.ErrInsufficientHoldings
		}
		return err
	}

	if err := apply(holding); err != nil {
		return err
	}
	if err := s.holdings.Save(ctx, holding); err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}

	logger.Debug(ctx, "holding decremented",
		"user_id", userID,
		"listing_id", listingID,
		"shares", shares,
		"quantity", holding.ShareQuantity,
	)
	return nil
}

// GetHolding loads the position for a (user, listing) pair.
func (s *HoldingsService) GetHolding(ctx context.Context, userID, listingID string) (*domain.Holding, error) {
	return s.holdings.Get(ctx, userID, listingID)
}

// ListByUser pages through a user's positions.
func (s *HoldingsService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Holding, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.holdings.ListByUser(ctx, userID, limit, offset)
}

// HeldShares totals the held quantity across all users of a listing.
func (s *HoldingsService) HeldShares(ctx context.Context, listingID string) (int64, error) {
	return s.holdings.SumByListing(ctx, listingID)
}
