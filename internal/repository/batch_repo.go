package repository

import (
	"context"
	"time"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(ctx context.Context, tx *gorm.DB, b *model.Batch) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Batch, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.Batch, error)

	// Row-locking reads: tx is required and locks are held until it ends.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Batch, error)
	// LockActiveByProduct locks every active batch of the product ordered by
	// expiry date, earliest first.
	LockActiveByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]model.Batch, error)

	// SetQuantity writes an absolute quantity to a batch the caller holds locked.
	SetQuantity(ctx context.Context, tx *gorm.DB, id uuid.UUID, quantity int) error
	// SumCommitted totals current_quantity over the product's active batches,
	// optionally restricted to one branch.
	SumCommitted(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID) (int, error)
	// SumExpired totals current_quantity over active batches whose expiry
	// date is before the calendar day of now.
	SumExpired(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error)
	// ListExpiringBefore returns active batches with stock whose expiry date is
	// on or before the cutoff.
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]model.Batch, error)
	// Deactivate soft-deletes an empty batch and reports whether a row changed.
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	DB() *gorm.DB
}

type batchRepo struct{ db *gorm.DB }

func NewBatchRepository(db *gorm.DB) BatchRepository { return &batchRepo{db: db} }

func (r *batchRepo) DB() *gorm.DB { return r.db }

func (r *batchRepo) Create(ctx context.Context, tx *gorm.DB, b *model.Batch) error {
	return on(ctx, r.db, tx).Create(b).Error
}

func (r *batchRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Batch, error) {
	var b model.Batch
	err := on(ctx, r.db, tx).First(&b, "id = ?", id).Error
	return &b, err
}

func (r *batchRepo) ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.Batch, error) {
	var batches []model.Batch
	q := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if !includeInactive {
		q = q.Where("active = true")
	}
	err := q.Order("expiry_date ASC, received_at ASC").Find(&batches).Error
	return batches, err
}

func (r *batchRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Batch, error) {
	var b model.Batch
	err := forUpdate(tx.WithContext(ctx)).First(&b, "id = ?", id).Error
	return &b, err
}

func (r *batchRepo) LockActiveByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	err := forUpdate(tx.WithContext(ctx)).
		Where("product_id = ? AND active = true", productID).
		Order("expiry_date ASC, received_at ASC, batch_number ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchRepo) SetQuantity(ctx context.Context, tx *gorm.DB, id uuid.UUID, quantity int) error {
	return tx.WithContext(ctx).Model(&model.Batch{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_quantity": quantity,
			"updated_at":       time.Now(),
		}).Error
}

func (r *batchRepo) SumCommitted(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID) (int, error) {
	var total int
	q := on(ctx, r.db, tx).Model(&model.Batch{}).
		Select("COALESCE(SUM(current_quantity), 0)").
		Where("product_id = ? AND active = true", productID)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	err := q.Scan(&total).Error
	return total, err
}

func (r *batchRepo) SumExpired(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error) {
	var total int
	q := on(ctx, r.db, tx).Model(&model.Batch{}).
		Select("COALESCE(SUM(current_quantity), 0)").
		Where("product_id = ? AND active = true AND expiry_date < ?", productID, now.Format(time.DateOnly))
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	err := q.Scan(&total).Error
	return total, err
}

func (r *batchRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.WithContext(ctx).Preload("Product").
		Where("active = true AND current_quantity > 0 AND expiry_date <= ?", cutoff).
		Order("expiry_date ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Batch{}).
		Where("id = ? AND current_quantity = 0", id).
		Update("active", false)
	return res.RowsAffected > 0, res.Error
}
