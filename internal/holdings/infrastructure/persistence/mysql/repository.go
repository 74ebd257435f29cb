// Package mysql implements the holdings repository on GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wqellis/brickvest/internal/holdings/domain"
	"github.com/wqellis/brickvest/pkg/contextx"
)

// HoldingRepository is the GORM-backed holdings store.
type HoldingRepository struct {
	db *gorm.DB
}

// NewHoldingRepository creates a holdings repository.
func NewHoldingRepository(db *gorm.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// Save upserts the holding.
func (r *HoldingRepository) Save(ctx context.Context, holding *domain.Holding) error {
	return r.getDB(ctx).WithContext(ctx).Save(holding).Error
}

// Get loads the position for a (user, listing) pair.
func (r *HoldingRepository) Get(ctx context.Context, userID, listingID string) (*domain.Holding, error) {
	var holding domain.Holding
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &holding, nil
}

// GetWithLock loads the position with SELECT ... FOR UPDATE.
func (r *HoldingRepository) GetWithLock(ctx context.Context, userID, listingID string) (*domain.Holding, error) {
	var holding domain.Holding
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("failed to lock holding: %w", err)
	}
	return &holding, nil
}

// ListByUser pages through a user's positions.
func (r *HoldingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Holding, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Holding{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var holdings []*domain.Holding
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&holdings).Error; err != nil {
		return nil, 0, err
	}
	return holdings, total, nil
}

// SumByListing totals held shares across all users of a listing.
func (r *HoldingRepository) SumByListing(ctx context.Context, listingID string) (int64, error) {
	var total int64
	err := r.getDB(ctx).WithContext(ctx).Model(&domain.Holding{}).
		Where("listing_id = ?", listingID).
		Select("COALESCE(SUM(share_quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum holdings for listing: %w", err)
	}
	return total, nil
}

func (r *HoldingRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}
