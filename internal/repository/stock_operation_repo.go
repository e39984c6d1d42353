package repository

import (
	"context"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockOperationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, op *model.StockOperation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockOperation, error)
	DB() *gorm.DB
}

type stockOperationRepo struct{ db *gorm.DB }

func NewStockOperationRepository(db *gorm.DB) StockOperationRepository {
	return &stockOperationRepo{db: db}
}

func (r *stockOperationRepo) DB() *gorm.DB { return r.db }

func (r *stockOperationRepo) Create(ctx context.Context, tx *gorm.DB, op *model.StockOperation) error {
	return on(ctx, r.db, tx).Create(op).Error
}

func (r *stockOperationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockOperation, error) {
	var op model.StockOperation
	err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error
	return &op, err
}
