// Package mysql implements the journal entry repository on GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wqellis/brickvest/internal/journal/domain"
	"github.com/wqellis/brickvest/pkg/contextx"
)

// EntryRepository is the GORM-backed journal store.
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates a journal entry repository.
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create appends the already-sealed entries. The unique index on sequence
// rejects a fork should two appenders ever race past the tail lock.
func (r *EntryRepository) Create(ctx context.Context, entries []*domain.Entry) error {
	if err := r.getDB(ctx).WithContext(ctx).Create(entries).Error; err != nil {
		return fmt.Errorf("failed to create journal entries: %w", err)
	}
	return nil
}

// GetTail returns the highest-sequence entry under a row lock.
func (r *EntryRepository) GetTail(ctx context.Context) (*domain.Entry, error) {
	var entry domain.Entry
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("sequence DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get journal tail: %w", err)
	}
	return &entry, nil
}

// GetRange returns entries within [fromSeq, toSeq] in chain order.
func (r *EntryRepository) GetRange(ctx context.Context, fromSeq, toSeq uint64) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := r.getDB(ctx).WithContext(ctx).
		Where("sequence >= ? AND sequence <= ?", fromSeq, toSeq).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get journal range: %w", err)
	}
	return entries, nil
}

// GetBefore returns the entry immediately preceding seq.
func (r *EntryRepository) GetBefore(ctx context.Context, seq uint64) (*domain.Entry, error) {
	var entry domain.Entry
	err := r.getDB(ctx).WithContext(ctx).
		Where("sequence < ?", seq).
		Order("sequence DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preceding journal entry: %w", err)
	}
	return &entry, nil
}

// ListByOrder returns all entries referencing an order, in chain order.
func (r *EntryRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := r.getDB(ctx).WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries by order: %w", err)
	}
	return entries, nil
}

// List pages through the chain in descending sequence order.
func (r *EntryRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entry, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Entry{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*domain.Entry
	if err := query.Order("sequence DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *EntryRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}
