package repository

import (
	"context"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	// Create inserts the sale with its items and payments.
	Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	// LockByID locks the sale row and loads its items; tx is required.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.SaleStatus, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, status model.PaymentStatus) error
	CreateAuditLog(ctx context.Context, tx *gorm.DB, entry *model.SaleAuditLog) error
	NextSaleNumber(ctx context.Context, tx *gorm.DB) (int, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return on(ctx, r.db, tx).Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items.Product").Preload("Payments").First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	if err := forUpdate(tx.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	// Items are immutable once the sale exists, so they need no lock.
	if err := tx.WithContext(ctx).Where("sale_id = ?", id).Find(&s.Items).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.SaleStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status, "updated_at": at}
	switch status {
	case model.SaleCompleted:
		updates["completed_at"] = at
	case model.SaleCancelled:
		updates["cancelled_at"] = at
	}
	return on(ctx, r.db, tx).Model(&model.Sale{}).Where("id = ?", id).Updates(updates).Error
}

func (r *saleRepo) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, status model.PaymentStatus) error {
	return on(ctx, r.db, tx).Model(&model.Payment{}).Where("sale_id = ?", saleID).
		Update("status", status).Error
}

func (r *saleRepo) CreateAuditLog(ctx context.Context, tx *gorm.DB, entry *model.SaleAuditLog) error {
	return on(ctx, r.db, tx).Create(entry).Error
}

func (r *saleRepo) NextSaleNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	// PostgreSQL sequence keeps numbering gap-tolerant and race-free
	var num int
	err := on(ctx, r.db, tx).Raw("SELECT nextval('sales_number_seq')").Scan(&num).Error
	return num, err
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Date != "" {
		q = q.Where("DATE(created_at) = ?", filter.Date)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageBounds(filter.Page, filter.Limit, 50, 200)
	err := q.Preload("Items.Product").Preload("Payments").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&sales).Error
	return sales, total, err
}
