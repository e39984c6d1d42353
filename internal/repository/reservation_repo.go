package repository

import (
	"context"
	"time"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, r *model.StockReservation) error
	// Delete removes one hold and reports how many rows went away.
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error)
	DeleteByReference(ctx context.Context, tx *gorm.DB, referenceID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListActiveByProduct(ctx context.Context, productID uuid.UUID, now time.Time) ([]model.StockReservation, error)

	// SumActive totals non-expired holds for the product. With branchID set,
	// only holds pinned to that branch's batches and unpinned holds count.
	SumActive(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error)
	// SumActiveForBatch totals non-expired holds pinned to one batch.
	SumActiveForBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, now time.Time) (int, error)
	DB() *gorm.DB
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) DB() *gorm.DB { return r.db }

func (r *reservationRepo) Create(ctx context.Context, tx *gorm.DB, res *model.StockReservation) error {
	return on(ctx, r.db, tx).Create(res).Error
}

func (r *reservationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error) {
	q := on(ctx, r.db, tx).Where("id = ?", id).Delete(&model.StockReservation{})
	return q.RowsAffected, q.Error
}

func (r *reservationRepo) DeleteByReference(ctx context.Context, tx *gorm.DB, referenceID string) (int64, error) {
	q := on(ctx, r.db, tx).Where("reference_id = ?", referenceID).Delete(&model.StockReservation{})
	return q.RowsAffected, q.Error
}

func (r *reservationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.StockReservation{})
	return q.RowsAffected, q.Error
}

func (r *reservationRepo) ListActiveByProduct(ctx context.Context, productID uuid.UUID, now time.Time) ([]model.StockReservation, error) {
	var out []model.StockReservation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND expires_at > ?", productID, now).
		Order("expires_at ASC").Find(&out).Error
	return out, err
}

func (r *reservationRepo) SumActive(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error) {
	var total int
	q := on(ctx, r.db, tx).Model(&model.StockReservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND expires_at > ?", productID, now)
	if branchID != nil {
		q = q.Where("batch_id IS NULL OR batch_id IN (?)",
			on(ctx, r.db, tx).Model(&model.Batch{}).Select("id").Where("branch_id = ?", *branchID))
	}
	err := q.Scan(&total).Error
	return total, err
}

func (r *reservationRepo) SumActiveForBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, now time.Time) (int, error) {
	var total int
	err := on(ctx, r.db, tx).Model(&model.StockReservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("batch_id = ? AND expires_at > ?", batchID, now).
		Scan(&total).Error
	return total, err
}
