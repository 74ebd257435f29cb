// Package mysql implements the order repository on GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/pkg/contextx"
)

// OrderRepository is the GORM-backed order store.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Save upserts the order.
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	return r.getDB(ctx).WithContext(ctx).Save(order).Error
}

// Get loads an order by its external ID.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetWithLock loads an order with SELECT ... FOR UPDATE.
func (r *OrderRepository) GetWithLock(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

// ListByUser pages through a user's orders, optionally filtered by status.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, status domain.Status, limit, offset int) ([]*domain.Order, int64, error) {
	return r.list(ctx, "user_id", userID, status, limit, offset)
}

// ListByListing pages through a listing's orders, optionally filtered by
// status.
func (r *OrderRepository) ListByListing(ctx context.Context, listingID string, status domain.Status, limit, offset int) ([]*domain.Order, int64, error) {
	return r.list(ctx, "listing_id", listingID, status, limit, offset)
}

func (r *OrderRepository) list(ctx context.Context, column, value string, status domain.Status, limit, offset int) ([]*domain.Order, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Order{}).Where(column+" = ?", value)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*domain.Order
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}
